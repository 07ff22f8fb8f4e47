package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/fire-square/FireLaunch/internal/versions"
	"github.com/fire-square/FireLaunch/pkg/launch"
	"github.com/fire-square/FireLaunch/pkg/progress"
)

// watch returns a sink that renders progress on w and a function that
// waits for the renderer to drain.
func (c *cli) watch(w io.Writer) (progress.Sink, func()) {
	buf := progress.NewBuffer(c.cfg.Progress.Buffer)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range buf.Events() {
			switch {
			case e.Kind == progress.ArtifactDone:
				fmt.Fprintf(w, "\r📥 %d/%d artifacts", e.Completed, e.Total)
			case e.Kind.Terminal():
				fmt.Fprintln(w)
			}
		}
	}()
	sink := progress.Tee(progress.Log(c.logger), buf)
	return sink, func() {
		buf.Close()
		<-done
		if n := buf.Dropped(); n > 0 {
			c.logger.Trace("📉 Progress events dropped", "count", n)
		}
	}
}

func (c *cli) resolveCmd() *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "resolve <version>",
		Short: "Resolve a version and print its artifact set",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(c.cfg, c.logger, appOptions{refresh: refresh})
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.resolver.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, describe(res))
			for _, ref := range res.Artifacts() {
				fmt.Fprintf(out, "%-11s %s %s\n", ref.Kind, ref.Digest, ref.Path)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Re-download manifests even when cached")
	return cmd
}

func (c *cli) fetchCmd() *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "fetch <version>",
		Short: "Download and verify every artifact of a version",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(c.cfg, c.logger, appOptions{refresh: refresh})
			if err != nil {
				return err
			}
			defer a.close()

			sink, wait := c.watch(cmd.ErrOrStderr())
			_, err = a.prov.Install(cmd.Context(), args[0], sink)
			wait()
			return err
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Re-download manifests even when cached")
	return cmd
}

func (c *cli) verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <version>",
		Short: "Check installed artifacts against their digests",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(c.cfg, c.logger, appOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			report, err := a.prov.Verify(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, ref := range report.Missing {
				fmt.Fprintf(out, "missing %s\n", ref.Path)
			}
			for _, ref := range report.Corrupt {
				fmt.Fprintf(out, "corrupt %s\n", ref.Path)
			}
			if !report.OK() {
				return fmt.Errorf("%w: %d missing, %d corrupt of %d",
					launch.ErrIncompleteInstall, len(report.Missing), len(report.Corrupt), report.Total)
			}
			fmt.Fprintf(out, "✅ %s: %d artifacts verified\n", report.Version, report.Total)
			return nil
		},
	}
}

func (c *cli) launchCmd() *cobra.Command {
	var (
		dryRun   bool
		refresh  bool
		java     string
		gameDir  string
		username string
		width    int
		height   int
	)
	cmd := &cobra.Command{
		Use:   "launch <version>",
		Short: "Install a version if needed and start the game",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(c.cfg, c.logger, appOptions{refresh: refresh, username: username})
			if err != nil {
				return err
			}
			defer a.close()

			sink, wait := c.watch(cmd.ErrOrStderr())
			spec, err := a.prov.Prepare(cmd.Context(), args[0], sink, a.launchOptions(java, gameDir, width, height))
			wait()
			if err != nil {
				return err
			}
			defer func() {
				if err := spec.Cleanup(); err != nil {
					c.logger.Debug("⚠️ Failed to remove natives", "dir", spec.NativesDir, "error", err)
				}
			}()

			if dryRun {
				fmt.Fprintln(cmd.OutOrStdout(), spec.String())
				return nil
			}
			return c.run(cmd.Context(), spec)
		},
	}
	f := cmd.Flags()
	f.BoolVar(&dryRun, "dry-run", false, "Print the command instead of running it")
	f.BoolVar(&refresh, "refresh", false, "Re-download manifests even when cached")
	f.StringVar(&java, "java", "", "Java executable")
	f.StringVar(&gameDir, "game-dir", "", "Game working directory")
	f.StringVar(&username, "username", "", "Play offline under this name")
	f.IntVar(&width, "width", 0, "Window width")
	f.IntVar(&height, "height", 0, "Window height")
	return cmd
}

// run starts the game and waits for it, passing its exit status through.
func (c *cli) run(ctx context.Context, spec *launch.Spec) error {
	proc, err := launch.Start(ctx, spec, c.logger)
	if err != nil {
		return err
	}
	err = proc.Wait()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		c.logger.Info("⏹️ Game exited", "code", exitErr.ExitCode())
		return gameExitError{code: exitErr.ExitCode()}
	}
	if err != nil {
		return err
	}
	c.logger.Info("✅ Game exited normally")
	return nil
}

func (c *cli) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List versions with cached manifests",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(c.cfg, c.logger, appOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			ids, err := a.resolver.Cached()
			if err != nil {
				return err
			}
			for _, id := range versions.Sort(ids) {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}
