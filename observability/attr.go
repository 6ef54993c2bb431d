package observability

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	ReasonKey attribute.Key = "reason"
	PolicyKey attribute.Key = "dirty.policy"
)

/*
ErrStatus returns attribute named "status" with value "ok" if the param
err is nil and "err" when it is not.
*/
func ErrStatus(err error) attribute.KeyValue {
	status := "ok"
	if err != nil {
		status = "err"
	}
	return attribute.String("status", status)
}

// Realloc returns attribute telling whether resize had to allocate new buffers.
func Realloc(realloc bool) attribute.KeyValue {
	return attribute.Bool("realloc", realloc)
}

func Reason(reason string) attribute.KeyValue {
	return ReasonKey.String(reason)
}

// Policy returns attribute naming the dirty policy of the framebuffer.
func Policy(policy fmt.Stringer) attribute.KeyValue {
	return PolicyKey.String(policy.String())
}

/*
Attrs is shortcut for creating measurement option with given attributes.
*/
func Attrs(attrs ...attribute.KeyValue) metric.MeasurementOption {
	return metric.WithAttributeSet(attribute.NewSet(attrs...))
}
