package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"pool-block-alerts/internal/state"
)

// WatermarkKeys maps CLI stream names to state keys.
var WatermarkKeys = map[string]string{
	"blocks":  state.KeyLastBlockHeight,
	"payouts": state.KeyLastPayoutHeight,
}

// ShowState prints the persisted watermarks and the recommendation marker.
func (a *App) ShowState(ctx context.Context) error {
	sess, err := a.openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	return writeState(ctx, os.Stdout, sess.state, a.Config.State.Backend)
}

func writeState(ctx context.Context, out io.Writer, st state.Store, backend string) error {
	blocks, err := st.GetInt(ctx, state.KeyLastBlockHeight, 0)
	if err != nil {
		return err
	}
	payouts, err := st.GetInt(ctx, state.KeyLastPayoutHeight, 0)
	if err != nil {
		return err
	}
	marker, err := st.GetString(ctx, state.KeyLastRecommendationDate, "")
	if err != nil {
		return err
	}
	if marker == "" {
		marker = "-"
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Backend\t%s\n", backend)
	fmt.Fprintf(writer, "%s\t%d\n", state.KeyLastBlockHeight, blocks)
	fmt.Fprintf(writer, "%s\t%d\n", state.KeyLastPayoutHeight, payouts)
	fmt.Fprintf(writer, "%s\t%s\n", state.KeyLastRecommendationDate, marker)
	return writer.Flush()
}

// SetWatermark overwrites a stream watermark. Lowering it replays events on the next run.
func (a *App) SetWatermark(ctx context.Context, stream string, height int64) error {
	key, ok := WatermarkKeys[stream]
	if !ok {
		return fmt.Errorf("unknown stream %q (want blocks or payouts)", stream)
	}

	sess, err := a.openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	wm := state.NewWatermark(sess.state, key)
	previous, err := wm.Load(ctx)
	if err != nil {
		a.Logger.Warn().Err(err).Str("key", key).Msg("overwriting unreadable watermark")
	}
	if err := wm.Set(ctx, height); err != nil {
		return err
	}
	a.Logger.Info().Str("key", key).Int64("previous", previous).Int64("height", height).Msg("watermark set")
	return nil
}
