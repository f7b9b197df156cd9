package main

import (
	"errors"
	"fmt"
	"image/color"

	gg "github.com/fogleman/gg"

	"github.com/A1Liu/os/internal/scenario"
	"github.com/spf13/cobra"
)

const (
	renderHeader = 24
	renderMargin = 4
)

var (
	renderOut     string
	renderColumns int
	renderCell    int
	renderMax     int

	errNoFrames = errors.New("scenario produced no frames to render")

	frameColors = map[scenario.FrameState]color.Color{
		scenario.FrameUnmanaged: color.RGBA{0x40, 0x40, 0x40, 0xff},
		scenario.FrameAllocated: color.RGBA{0xd0, 0x40, 0x40, 0xff},
		scenario.FrameFree:      color.RGBA{0x40, 0xb0, 0x50, 0xff},
	}
)

func init() {
	cmd := newRenderCmd()
	cmd.Flags().StringVarP(&renderOut, "output", "o", "frames.png", "Output PNG file")
	cmd.Flags().IntVar(&renderColumns, "columns", 64, "Frames per row")
	cmd.Flags().IntVar(&renderCell, "cell", 6, "Size of a frame cell in pixels")
	cmd.Flags().IntVar(&renderMax, "max-frames", 1<<18, "Maximum number of frames to draw (0 draws all)")
	rootCmd.AddCommand(cmd)
}

func newRenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <scenario>",
		Short: "Render the frame map after running a scenario",
		Long: `The render command runs a scenario and draws one cell per frame managed
by the allocator: free frames in green, allocated frames in red and frames
outside any free region in gray. Unmanaged frames past the last free or
allocated frame are not drawn, and --max-frames caps the rest.

Example:
  pmmsim render split_merge.yaml -o frames.png
  pmmsim render qemu.yaml --columns 128 --cell 2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(args)
		},
	}
	return cmd
}

func runRender(args []string) error {
	if renderColumns <= 0 || renderCell <= 0 {
		return fmt.Errorf("columns and cell size must be positive")
	}

	s, err := scenario.Load(args[0])
	if err != nil {
		return err
	}

	report, err := scenario.Run(s, scenario.Options{Logger: newLogger()})
	if err != nil {
		return err
	}

	frames := renderedFrames(report.Frames, renderMax)
	dc, err := renderFrames(report, frames, renderColumns, renderCell)
	if err != nil {
		return err
	}

	if err := dc.SavePNG(renderOut); err != nil {
		return fmt.Errorf("failed to write %s: %w", renderOut, err)
	}

	printInfo("Rendered %s of %s frames to %s\n",
		printer.Sprintf("%d", len(frames)), printer.Sprintf("%d", len(report.Frames)), renderOut)
	return nil
}

// renderedFrames drops the unmanaged frames past the last free or allocated
// one and keeps at most maxFrames of the rest when maxFrames is positive.
func renderedFrames(frames []scenario.FrameState, maxFrames int) []scenario.FrameState {
	end := len(frames)
	for end > 0 && frames[end-1] == scenario.FrameUnmanaged {
		end--
	}
	if maxFrames > 0 && end > maxFrames {
		end = maxFrames
	}
	return frames[:end]
}

// renderFrames draws frames as a grid with a one line caption taken from
// report above it.
func renderFrames(report *scenario.Report, frames []scenario.FrameState, columns, cell int) (*gg.Context, error) {
	if len(frames) == 0 {
		return nil, errNoFrames
	}

	if columns > len(frames) {
		columns = len(frames)
	}
	rows := (len(frames) + columns - 1) / columns

	width := columns*cell + 2*renderMargin
	height := rows*cell + 2*renderMargin + renderHeader
	dc := gg.NewContext(width, height)

	dc.SetRGB(1, 1, 1)
	dc.Clear()

	dc.SetRGB(0, 0, 0)
	caption := fmt.Sprintf("%s free %d/%d", report.Name, report.FreeMemory, report.InitialFree)
	dc.DrawStringAnchored(caption, renderMargin, renderHeader/2, 0, 0.5)

	for frame, state := range frames {
		x := renderMargin + (frame%columns)*cell
		y := renderMargin + renderHeader + (frame/columns)*cell

		dc.SetColor(frameColors[state])
		dc.DrawRectangle(float64(x), float64(y), float64(cell), float64(cell))
		dc.Fill()
	}

	return dc, nil
}
