package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/alphabill-org/wasm-framebuffer/framebuffer"
	"github.com/alphabill-org/wasm-framebuffer/host"
)

type renderFlags struct {
	*baseConfiguration
	engineFlags

	Frames  uint64
	FPS     float64
	OutFile string
}

func newRenderCmd(baseConfig *baseConfiguration) *cobra.Command {
	flags := &renderFlags{baseConfiguration: baseConfig}
	var cmd = &cobra.Command{
		Use:   "render",
		Short: "Renders frames as fast as possible and writes snapshots of them into file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return renderFrames(cmd.Context(), flags)
		},
	}
	flags.addEngineFlags(cmd)
	cmd.Flags().Uint64Var(&flags.Frames, "frames", 1, "number of frames to render")
	cmd.Flags().Float64Var(&flags.FPS, "fps", host.DefaultFPS, "simulated frame rate, determines time step passed to update")
	cmd.Flags().StringVarP(&flags.OutFile, "out", "o", "frames.cbor", "output file, relative path is relative to the $FB_HOME")
	return cmd
}

func (f *renderFlags) outputFile() string {
	if filepath.IsAbs(f.OutFile) {
		return f.OutFile
	}
	return filepath.Join(f.HomeDir, f.OutFile)
}

func renderFrames(ctx context.Context, flags *renderFlags) (rErr error) {
	if flags.Frames == 0 {
		return errors.New("number of frames must be greater than zero")
	}
	if flags.FPS <= 0 {
		return fmt.Errorf("invalid frame rate %v", flags.FPS)
	}

	vm, step, err := flags.newVM(ctx, flags.observe)
	if err != nil {
		return err
	}
	defer func() { rErr = errors.Join(rErr, vm.Close(ctx)) }()

	filename := flags.outputFile()
	if err := os.MkdirAll(filepath.Dir(filename), 0700); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer func() { rErr = errors.Join(rErr, f.Close()) }()

	w := bufio.NewWriter(f)
	enc := framebuffer.NewSnapshotEncoder(w)
	e := vm.Engine()
	dt := float32(1 / flags.FPS)
	for i := range flags.Frames {
		if err := step(ctx, e, dt); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		s, err := e.Snapshot()
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		if err := enc.Encode(s); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing output file: %w", err)
	}
	consoleWriter.Println(fmt.Sprintf("%d frames written to %s", flags.Frames, filename))
	return nil
}
