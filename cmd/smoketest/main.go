package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/myrjola/sleuth/internal/e2etest"
	"github.com/myrjola/sleuth/internal/errors"
	"github.com/myrjola/sleuth/internal/logging"
)

const smokeReport = `My flatmate Sam ate the birthday cake I had bought for our friend Jo the evening before the party.
Sam says the cake was in the shared shelf of the fridge and there was no note on it.`

// testInvestigation opens an investigation and answers the first question. It exercises the oracle end to end.
func testInvestigation(ctx context.Context, client *e2etest.Client) (e2etest.Investigation, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Minute) //nolint:mnd // a few oracle round trips.
	defer cancel()

	inv, err := client.Start(ctx, e2etest.StartRequest{
		IncidentName: "Smoke test cake",
		Participant:  e2etest.Participant{Name: "Smoke test", Role: "participant"},
		Threshold:    0,
		Report:       smokeReport,
		Images:       nil,
	})
	if err != nil {
		return inv, errors.Wrap(err, "start investigation")
	}
	if inv.Question == "" || len(inv.Answers) == 0 {
		return inv, errors.New("investigation started without a question", slog.String("id", inv.ID))
	}
	if inv, err = client.Choose(ctx, inv.ID, 0); err != nil {
		return inv, errors.Wrap(err, "answer first question", slog.String("id", inv.ID))
	}
	if inv.TurnCount != 1 {
		return inv, errors.New("unexpected turn count", slog.Int("turn_count", inv.TurnCount))
	}
	return inv, nil
}

func main() {
	logger := logging.NewLogger(os.Stdout, slog.LevelDebug, false)
	ctx := context.Background()

	if len(os.Args) != 2 { //nolint:mnd // we expect only hostname to be passed as argument.
		logger.LogAttrs(ctx, slog.LevelError, "usage: smoketest <hostname>")
		os.Exit(1)
	}

	var (
		hostname = os.Args[1]
		url      = "https://" + hostname
		client   *e2etest.Client
		err      error
	)
	ctx = logging.WithAttrs(ctx, slog.String("hostname", url))

	if client, err = e2etest.NewClient(url); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error creating client", errors.SlogError(err))
		os.Exit(1)
	}
	if err = client.WaitForReady(ctx, "/api/healthy"); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "server not healthy", errors.SlogError(err))
		os.Exit(1)
	}
	var inv e2etest.Investigation
	if inv, err = testInvestigation(ctx, client); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error testing investigation", errors.SlogError(err))
		os.Exit(1)
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "Smoke test successful 🙌",
		slog.String("investigation_id", inv.ID), slog.Int("progress", inv.Progress))
	os.Exit(0)
}
