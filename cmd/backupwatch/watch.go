package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shuakami/backupwatch"
	"github.com/shuakami/backupwatch/walker"
)

func newWatchCmd(a *app) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "watch [PATH...]",
		Short: "Watch directories and print fingerprinted changes",
		Long: `Watch directories and print fingerprinted changes until interrupted.

Paths default to watch.paths from the configuration. The walk filter and
attribute masks from the configuration apply to both the initial scan and
later events.

Examples:
  backupwatch watch /srv/docs
  backupwatch watch --metrics-addr :9100 /srv/docs /srv/photos`,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := args
			if len(paths) == 0 {
				paths = a.cfg.Watch.Paths
			}
			if len(paths) == 0 {
				return errors.New("no paths to watch")
			}

			opts, err := a.cfg.WalkOptions()
			if err != nil {
				return err
			}
			fp, err := a.fingerprinter()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if metricsAddr != "" {
				srv := serveMetrics(metricsAddr, a)
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
			}

			w, err := backupwatch.NewWatcher(backupwatch.ConfigWatcher{
				WatchPaths:    paths,
				Filter:        opts.Filter,
				TopLevelOnly:  !opts.Recursive,
				DirMask:       opts.DirMask,
				FileMask:      opts.FileMask,
				Debounce:      a.cfg.Watch.Debounce,
				WorkerCount:   a.cfg.Watch.Workers,
				Logger:        a.logger,
				Fingerprinter: fp,
				Walker:        walker.New(walker.WithLogger(a.logger)),
			})
			if err != nil {
				return err
			}
			if err := w.Start(); err != nil {
				w.Stop()
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "watching %d path(s), %d file(s) in initial snapshot\n",
				len(paths), len(w.GetCurrentSnapshot().Files))

			for {
				select {
				case evt := <-w.EventChan:
					printEvent(out, evt, parentOf(w, evt.NewSnap))
				case <-ctx.Done():
					w.Stop()
					for evt := range w.EventChan {
						printEvent(out, evt, parentOf(w, evt.NewSnap))
					}
					return nil
				}
			}
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9100)")
	return cmd
}

// printEvent 打印事件快照相对父快照的差异。
// 一个事件可能带来多个文件变化（例如新建目录），因此逐个打印 Diff 结果。
func printEvent(out io.Writer, evt backupwatch.FileEvent, parent *backupwatch.SnapshotNode) {
	if !evt.Changed || evt.NewSnap == nil {
		return
	}
	for _, c := range backupwatch.Diff(parent, evt.NewSnap) {
		if c.Kind == backupwatch.Removed {
			fmt.Fprintf(out, "%-8s %s\n", c.Kind, c.Path)
			continue
		}
		fmt.Fprintf(out, "%-8s %s %s %s\n",
			c.Kind, c.New.Fingerprint, humanize.IBytes(uint64(c.New.Size)), c.Path)
	}
}

func parentOf(w *backupwatch.Watcher, snap *backupwatch.SnapshotNode) *backupwatch.SnapshotNode {
	if snap == nil || len(snap.ParentIDs) == 0 {
		return nil
	}
	return w.GetSnapshotByID(snap.ParentIDs[0])
}

func serveMetrics(addr string, a *app) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	a.logger.Info("serving metrics", zap.String("addr", addr))
	return srv
}
