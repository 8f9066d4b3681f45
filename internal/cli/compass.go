package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/smokyabdulrahman/prayer-companion/internal/compass"
	"github.com/smokyabdulrahman/prayer-companion/internal/display"
	"github.com/smokyabdulrahman/prayer-companion/internal/geo"
)

var flagDeviceFrame bool

func newCompassCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compass",
		Short: "Stream a Qibla compass from magnetometer samples on stdin",
		Long: "Read magnetometer samples as \"x,y,z[,timestamp_ms]\" lines (microtesla) from stdin\n" +
			"and print the device heading and the needle rotation toward the Qibla.",
		Args: cobra.NoArgs,
		RunE: runCompass,
	}
	cmd.Flags().BoolVar(&flagDeviceFrame, "device-frame", false, "Samples use the device frame (x axis toward the top edge)")
	return cmd
}

type compassReading struct {
	Heading          float64 `json:"heading"`
	Qibla            float64 `json:"qibla_bearing"`
	NeedleRotation   float64 `json:"needle_rotation"`
	NeedsCalibration bool    `json:"needs_calibration"`
	FieldMicroTesla  float64 `json:"field_micro_tesla"`
}

func runCompass(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc := rt.locate(ctx)
	qibla, err := geo.BearingToMecca(loc.Point())
	if err != nil {
		return err
	}

	mag := compass.NewReaderMagnetometer(cmd.InOrStdin())
	session := compass.NewSession()
	if err := session.Start(ctx, mag); err != nil {
		if errors.Is(err, compass.ErrSensorUnavailable) {
			return fmt.Errorf("compass unavailable: %w", err)
		}
		return err
	}
	defer session.Stop()

	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)
	emit := func(st compass.State) error {
		return printReading(out, enc, reading(st, qibla))
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-mag.Done():
			return drain(ctx, session, emit)
		case st, ok := <-session.Updates():
			if !ok {
				return nil
			}
			if err := emit(st); err != nil {
				return err
			}
		}
	}
}

// drainIdle is how long the session may stay quiet after input ends before
// the stream is considered finished.
const drainIdle = 100 * time.Millisecond

// drain prints updates for samples still queued when input ended.
func drain(ctx context.Context, s *compass.Session, emit func(compass.State) error) error {
	idle := time.NewTimer(drainIdle)
	defer idle.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-idle.C:
			return nil
		case st, ok := <-s.Updates():
			if !ok {
				return nil
			}
			if err := emit(st); err != nil {
				return err
			}
			idle.Reset(drainIdle)
		}
	}
}

func reading(st compass.State, qibla float64) compassReading {
	heading := st.HeadingDegrees
	if flagDeviceFrame {
		heading = compass.AdjustHeading(heading)
	}
	return compassReading{
		Heading:          heading,
		Qibla:            qibla,
		NeedleRotation:   compass.NeedleRotation(qibla, heading),
		NeedsCalibration: st.NeedsCalibration,
		FieldMicroTesla:  st.FieldStrengthMicroTesla,
	}
}

func printReading(out io.Writer, enc *json.Encoder, r compassReading) error {
	if FlagJSON {
		return enc.Encode(r)
	}
	line := fmt.Sprintf("heading %6.1f°  qibla %6.1f°  needle %7.1f°", r.Heading, r.Qibla, r.NeedleRotation)
	if r.NeedsCalibration {
		line += "  " + display.Yellow("calibrate: move the device in a figure eight")
	}
	_, err := fmt.Fprintln(out, line)
	return err
}
