package observability

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

type policy string

func (p policy) String() string { return string(p) }

func TestAttributes(t *testing.T) {
	require.Equal(t, attribute.String("status", "ok"), ErrStatus(nil))
	require.Equal(t, attribute.String("status", "err"), ErrStatus(errors.New("boom")))
	require.Equal(t, attribute.Bool("realloc", true), Realloc(true))
	require.Equal(t, attribute.String("reason", "clean"), Reason("clean"))
	require.Equal(t, attribute.String("dirty.policy", "tracked"), Policy(policy("tracked")))
}
