package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/myrjola/sleuth/internal/ai"
	"github.com/myrjola/sleuth/internal/errors"
	"github.com/myrjola/sleuth/internal/interview"
	"github.com/myrjola/sleuth/internal/models"
	"github.com/spf13/cobra"
)

const (
	writeOwnOption = "Write my own answer"
	pauseOption    = "Pause and continue later"
)

func (c *cli) investigateCmd() *cobra.Command {
	var (
		reportPath string
		imagePaths []string
		threshold  int
		name       string
		role       string
	)
	cmd := &cobra.Command{
		Use:   "investigate <incident name>",
		Short: "Start a new investigation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			participant, err := c.participant(name, role)
			if err != nil {
				return err
			}
			report, err := c.report(reportPath, imagePaths)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(c.out, subtleStyle.Render("Reading the report and preparing questions..."))
			s, err := c.investigations.Start(cmd.Context(), interview.StartInput{
				IncidentName: strings.Join(args, " "),
				Participant:  participant,
				Threshold:    threshold,
				Report:       report,
			})
			if err != nil {
				return describe(err)
			}
			_, _ = fmt.Fprintln(c.out, subtleStyle.Render("Investigation "+s.ID))
			return c.interview(cmd.Context(), s)
		},
	}
	cmd.Flags().StringVar(&reportPath, "report", "", "read the incident report from a file")
	cmd.Flags().StringSliceVar(&imagePaths, "image", nil, "attach a screenshot, can be repeated")
	cmd.Flags().IntVar(&threshold, "threshold", 0,
		fmt.Sprintf("confidence threshold between %d and %d, defaults to the configured threshold",
			models.MinConfidenceThreshold, models.MaxConfidenceThreshold))
	cmd.Flags().StringVar(&name, "name", "", "your name")
	cmd.Flags().StringVar(&role, "role", "", "how you relate to the incident")
	return cmd
}

func (c *cli) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List investigations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sessions, err := c.investigations.List(cmd.Context())
			if err != nil {
				return describe(err)
			}
			_, _ = fmt.Fprintln(c.out, renderSessions(sessions))
			return nil
		},
	}
}

func (c *cli) resumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume <id>",
		Short: "Continue an investigation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.investigations.Get(cmd.Context(), args[0])
			if err != nil {
				return describe(err)
			}
			switch s.Status {
			case models.SessionStatusComplete:
				_, _ = fmt.Fprintln(c.out, "This investigation is complete. See the verdict with: sleuth analyze "+s.ID)
				return nil
			case models.SessionStatusPaused:
				if s, err = c.investigations.Resume(cmd.Context(), s.ID); err != nil {
					return describe(err)
				}
			case models.SessionStatusActive:
			}
			return c.interview(cmd.Context(), s)
		},
	}
}

func (c *cli) pauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause <id>",
		Short: "Pause an investigation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.investigations.Pause(cmd.Context(), args[0])
			if err != nil {
				return describe(err)
			}
			_, _ = fmt.Fprintln(c.out, "Paused. Continue with: sleuth resume "+s.ID)
			return nil
		},
	}
}

func (c *cli) analyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <id>",
		Short: "Show the timeline and verdict of an investigation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.analyze(cmd.Context(), args[0])
		},
	}
}

func (c *cli) analyze(ctx context.Context, id string) error {
	_, _ = fmt.Fprintln(c.out, subtleStyle.Render("Weighing the evidence..."))
	report, err := c.investigations.Analyze(ctx, id)
	if err != nil {
		return describe(err)
	}
	_, _ = fmt.Fprintln(c.out, renderAnalysis(report))
	return nil
}

// interview asks questions until the investigation completes or the respondent pauses it.
func (c *cli) interview(ctx context.Context, s *models.Session) error {
	for s.Status == models.SessionStatusActive {
		_, _ = fmt.Fprintln(c.out, renderTurn(s))

		options := make([]string, 0, len(s.Answers)+2) //nolint:mnd // write own and pause.
		for _, a := range s.Answers {
			options = append(options, a.Answer)
		}
		options = append(options, writeOwnOption, pauseOption)
		choice, err := c.respondent.Choose("Your answer", options)
		if err != nil {
			return errors.Wrap(err, "choose answer")
		}

		var next *models.Session
		switch {
		case choice < len(s.Answers):
			next, _, err = c.investigations.Choose(ctx, s.ID, choice)
		case options[choice] == writeOwnOption:
			var text string
			if text, err = c.respondent.Write("Your answer"); err != nil {
				return errors.Wrap(err, "write answer")
			}
			next, _, err = c.investigations.Answer(ctx, s.ID, models.CustomAnswer(text))
		default:
			if _, err = c.investigations.Pause(ctx, s.ID); err != nil {
				return describe(err)
			}
			_, _ = fmt.Fprintln(c.out, "Paused. Continue with: sleuth resume "+s.ID)
			return nil
		}

		// The investigation is unchanged after oracle failures so the same question can be answered again.
		if errors.Is(err, models.ErrOracleTransport) || errors.Is(err, models.ErrSchemaViolation) {
			c.logger.LogAttrs(ctx, slog.LevelDebug, "turn failed", errors.SlogError(err))
			_, _ = fmt.Fprintln(c.out, warnStyle.Render(describe(err).Error()))
			continue
		}
		if err != nil {
			return describe(err)
		}
		s = next
	}

	if s.Status == models.SessionStatusComplete {
		_, _ = fmt.Fprintln(c.out, doneStyle.Render("That's everything I needed to know. Thank you!"))
		choice, err := c.respondent.Choose("Show the verdict now?", []string{"Yes", "Later"})
		if err != nil {
			return errors.Wrap(err, "choose verdict")
		}
		if choice == 0 {
			return c.analyze(ctx, s.ID)
		}
		_, _ = fmt.Fprintln(c.out, "See the verdict later with: sleuth analyze "+s.ID)
	}
	return nil
}

func (c *cli) participant(name string, role string) (models.Participant, error) {
	var err error
	if name == "" {
		if name, err = c.respondent.Write("Your name"); err != nil {
			return models.Participant{}, errors.Wrap(err, "write name")
		}
	}
	if role == "" {
		options := make([]string, len(models.ParticipantRoles))
		for i, r := range models.ParticipantRoles {
			options[i] = fmt.Sprintf("%s: %s", r.Name, r.Description)
		}
		var i int
		if i, err = c.respondent.Choose("How are you related to the incident?", options); err != nil {
			return models.Participant{}, errors.Wrap(err, "choose role")
		}
		role = models.ParticipantRoles[i].Name
	}
	return models.Participant{Name: name, Role: role}, nil
}

// report reads the report text and the screenshots. The text is asked for when no file is given.
func (c *cli) report(reportPath string, imagePaths []string) (interview.Report, error) {
	var text string
	if reportPath != "" {
		b, err := os.ReadFile(reportPath)
		if err != nil {
			return interview.Report{}, errors.Wrap(err, "read report", slog.String("path", reportPath))
		}
		text = string(b)
	} else if len(imagePaths) == 0 {
		var err error
		if text, err = c.respondent.Write("What happened?"); err != nil {
			return interview.Report{}, errors.Wrap(err, "write report")
		}
	}

	images := make([]ai.Image, 0, len(imagePaths))
	for _, p := range imagePaths {
		data, err := os.ReadFile(p)
		if err != nil {
			return interview.Report{}, errors.Wrap(err, "read image", slog.String("path", p))
		}
		mediaType := http.DetectContentType(data)
		if !strings.HasPrefix(mediaType, "image/") {
			return interview.Report{}, errors.New("not an image",
				slog.String("path", p), slog.String("media_type", mediaType))
		}
		images = append(images, ai.Image{MediaType: mediaType, Data: data})
	}
	return interview.Report{Text: text, Images: images}, nil
}

// describe turns interview failures into messages for the respondent.
func describe(err error) error {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return errors.Wrap(err, "please check your input")
	case errors.Is(err, models.ErrSessionNotFound):
		return errors.Wrap(err, "no such investigation, see: sleuth list")
	case errors.Is(err, models.ErrInvalidTransition):
		return errors.Wrap(err, "not possible right now")
	case errors.Is(err, models.ErrSchemaViolation):
		return errors.Wrap(err, "the interviewer got confused, please try again")
	case errors.Is(err, models.ErrOracleTransport):
		return errors.Wrap(err, "the interviewer is unreachable, please try again")
	default:
		return err
	}
}
