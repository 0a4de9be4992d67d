package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/desertthunder/crowdq/internal/formatter"
	"github.com/desertthunder/crowdq/internal/models"
	"github.com/desertthunder/crowdq/internal/shared"
	"github.com/urfave/cli/v3"
)

// QueueList prints the ranked queue in --format.
func (r *Runner) QueueList(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	entries, err := r.apiClient(cmd).Queue(ctx)
	if err != nil {
		return err
	}

	data, err := formatter.Queue(entries, format)
	if err != nil {
		return err
	}
	return r.writePlain("%s", data)
}

// QueueAdd requests a song.
func (r *Runner) QueueAdd(ctx context.Context, cmd *cli.Command) error {
	req := models.AddSongRequest{
		Title:    strings.TrimSpace(cmd.StringArg("title")),
		Ref:      strings.TrimSpace(cmd.String("ref")),
		UserID:   cmd.String("user"),
		Priority: cmd.Bool("priority"),
	}
	if req.Title == "" && req.Ref == "" {
		return fmt.Errorf("%w: a title or --ref is required", shared.ErrMissingArgument)
	}

	res, err := r.apiClient(cmd).AddSong(ctx, req)
	if err != nil {
		return err
	}

	r.writePlain("✓ Added %s\n", res.Title)
	if res.ActiveName != "" {
		r.writePlain("  Playlist: %s\n", res.ActiveName)
	}
	if res.ArchiveName != "" {
		r.writePlain("  Archived in: %s\n", res.ArchiveName)
	}
	return nil
}

// QueueVote votes for the song at a 1-based position.
func (r *Runner) QueueVote(ctx context.Context, cmd *cli.Command) error {
	raw := cmd.StringArg("position")
	position, err := strconv.Atoi(raw)
	if err != nil || position < 1 {
		return fmt.Errorf("%w: position must be a number from 1, got %q", shared.ErrInvalidArgument, raw)
	}

	accepted, err := r.apiClient(cmd).Vote(ctx, position, cmd.String("user"))
	if err != nil {
		return err
	}
	if !accepted {
		return r.writePlain("✗ Vote not counted: already voted, or no song at position %d\n", position)
	}
	return r.writePlain("✓ Voted for position %d\n", position)
}

// QueueSkip retires songs from the head of the queue.
func (r *Runner) QueueSkip(ctx context.Context, cmd *cli.Command) error {
	retired, err := r.apiClient(cmd).Skip(ctx, cmd.Int("count"))
	if err != nil {
		return err
	}
	if len(retired) == 0 {
		return r.writePlain("Nothing to skip.\n")
	}
	for _, title := range retired {
		r.writePlain("✓ Skipped %s\n", title)
	}
	return nil
}

// QueueNow prints what the server last saw playing.
func (r *Runner) QueueNow(ctx context.Context, cmd *cli.Command) error {
	np, err := r.apiClient(cmd).NowPlaying(ctx)
	if err != nil {
		return err
	}
	return r.writePlain("%s\n", formatter.NowPlaying(*np))
}
