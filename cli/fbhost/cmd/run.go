package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ainvaltin/httpsrv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/alphabill-org/wasm-framebuffer/host"
	"github.com/alphabill-org/wasm-framebuffer/logger"
)

type runFlags struct {
	*baseConfiguration
	engineFlags

	FPS         float64
	Frames      uint64
	ListenAddr  string
	MaxBodySize int64
}

func newRunCmd(baseConfig *baseConfiguration) *cobra.Command {
	flags := &runFlags{baseConfiguration: baseConfig}
	var cmd = &cobra.Command{
		Use:   "run",
		Short: "Produces frames at fixed rate and serves them over REST API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHost(cmd.Context(), flags)
		},
	}
	flags.addEngineFlags(cmd)
	cmd.Flags().Float64Var(&flags.FPS, "fps", host.DefaultFPS, "frames per second")
	cmd.Flags().Uint64Var(&flags.Frames, "frames", 0, "stop after this many frames, zero means run until interrupted")
	cmd.Flags().StringVar(&flags.ListenAddr, "listen", "localhost:8080", "address of the REST API, empty value disables the API")
	cmd.Flags().Int64Var(&flags.MaxBodySize, "max-body-size", host.MaxBodySize, "max size of the REST API request body in bytes")
	return cmd
}

func runHost(ctx context.Context, flags *runFlags) error {
	obs := flags.observe
	log := obs.Logger()

	vm, step, err := flags.newVM(ctx, obs)
	if err != nil {
		return err
	}
	defer func() {
		if err := vm.Close(context.WithoutCancel(ctx)); err != nil {
			log.WarnContext(ctx, "closing wasm VM", logger.Error(err))
		}
	}()

	loop, err := host.NewLoop(vm.Engine(), log, host.WithFPS(flags.FPS), host.WithFrameLimit(flags.Frames), host.WithStep(step))
	if err != nil {
		return fmt.Errorf("creating frame loop: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// frame limit reached stops the REST API too
		defer cancel()
		return loop.Run(ctx)
	})

	if flags.ListenAddr != "" {
		g.Go(func() error {
			server := host.NewRESTServer(flags.ListenAddr, flags.MaxBodySize, loop, obs)
			log.InfoContext(ctx, fmt.Sprintf("REST API listening on %s", flags.ListenAddr))
			return httpsrv.Run(ctx, *server, httpsrv.ShutdownTimeout(5*time.Second))
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
