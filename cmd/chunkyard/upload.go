package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/The127/ioc"
	"github.com/docker/go-units"
	"github.com/the127/chunkyard/internal/config"
	"github.com/the127/chunkyard/internal/logging"
	"github.com/the127/chunkyard/internal/services/clock"
	"github.com/the127/chunkyard/internal/setup"
	"github.com/the127/chunkyard/internal/upload"
	"github.com/the127/chunkyard/internal/utils"
)

type uploadFlags struct {
	taskId string
	role   string
	cancel bool
	file   string
}

func parseUploadFlags(arguments []string) (uploadFlags, error) {
	var f uploadFlags

	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	fs.StringVar(&f.taskId, "task", "", "task id, pass the id of an earlier run to resume it")
	fs.StringVar(&f.role, "role", string(upload.FileRolePrimary), "primary or auxiliary")
	fs.BoolVar(&f.cancel, "cancel", false, "abandon the stored upload of the task")

	err := fs.Parse(arguments)
	if err != nil {
		return f, err
	}

	if fs.NArg() != 1 {
		return f, fmt.Errorf("expected exactly one file, got %d arguments", fs.NArg())
	}
	f.file = fs.Arg(0)

	if f.cancel && f.taskId == "" {
		return f, errors.New("--cancel requires --task")
	}

	return f, nil
}

func runUpload(arguments []string) error {
	f, err := parseUploadFlags(arguments)
	if err != nil {
		return err
	}

	role, err := upload.ParseFileRole(f.role)
	if err != nil {
		return err
	}

	file, err := os.Open(f.file)
	if err != nil {
		return fmt.Errorf("opening %s: %w", f.file, err)
	}
	defer utils.IgnoreError(file.Close)

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("reading %s: %w", f.file, err)
	}

	ctx := context.Background()

	dc := ioc.NewDependencyCollection()
	setup.Clock(dc)
	closeKv := setup.Kv(dc, config.C.Kv)
	defer utils.PanicOnError(closeKv, "closing kv store")
	setup.Checkpoints(dc, config.C.Upload)
	setup.Gateway(ctx, dc, config.C.Upload)
	dp := dc.BuildProvider()

	events := make(chan upload.Event, 64)
	session, err := upload.NewSession(upload.Options{
		TaskID:     f.taskId,
		FileRole:   role,
		Filename:   filepath.Base(f.file),
		Source:     file,
		TotalBytes: info.Size(),
		ChunkSize:  config.C.Upload.ChunkSizeBytes(),
		Events:     events,
		Clock:      ioc.GetDependency[clock.Service](dp),
	}, ioc.GetDependency[upload.Gateway](dp), ioc.GetDependency[upload.CheckpointStore](dp))
	if err != nil {
		return err
	}

	if f.cancel {
		return session.Cancel(ctx)
	}

	done := make(chan struct{})
	defer close(done)
	go logEvents(events, done)
	go handleSignals(ctx, session, done)

	result, err := session.Start(ctx)
	if errors.Is(err, upload.ErrCancelled) {
		logging.Logger.Infof("upload of task %s cancelled", session.TaskID())
		return nil
	}
	if err != nil {
		return fmt.Errorf("upload of task %s: %w", session.TaskID(), err)
	}

	switch result.Status {
	case upload.StatusPaused:
		logging.Logger.Infof("paused after %d parts, resume with --task %s", len(result.AcceptedParts), result.TaskID)

	case upload.StatusCompleted:
		fmt.Println(result.Reference)
	}

	return nil
}

// handleSignals pauses on the first interrupt and cancels on the second.
func handleSignals(ctx context.Context, session *upload.Session, done <-chan struct{}) {
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(c)

	interrupts := 0
	for {
		select {
		case <-done:
			return

		case <-c:
			interrupts++
			if interrupts == 1 {
				logging.Logger.Infof("pausing after the current part, interrupt again to cancel")
				session.Pause()
				continue
			}

			logging.Logger.Infof("cancelling upload")
			err := session.Cancel(ctx)
			if err != nil {
				logging.Logger.Warnf("cancel failed: %s", err)
			}
			return
		}
	}
}

func logEvents(events <-chan upload.Event, done <-chan struct{}) {
	lastPercent := -1
	for {
		select {
		case <-done:
			return

		case event := <-events:
			switch event.Type {
			case upload.EventProgress:
				percent := int(event.Progress.Percentage)
				if percent == lastPercent {
					continue
				}
				lastPercent = percent

				logging.Logger.Infof("%3d%% %s of %s, %s/s, %s left",
					percent,
					units.HumanSize(float64(event.Progress.UploadedBytes)),
					units.HumanSize(float64(event.Progress.TotalBytes)),
					units.HumanSize(event.Progress.BytesPerSecond),
					event.Progress.EstimatedRemaining.Round(time.Second))

			case upload.EventStatusChanged:
				logging.Logger.Debugf("upload is %s", event.Status)

			case upload.EventFailed:
				logging.Logger.Warnf("upload failed: %s", event.Err)
			}
		}
	}
}
