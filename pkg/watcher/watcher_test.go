package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vanderheijden86/mapdiff/pkg/config"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func tempConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "batch:\n  group_size: 5\n")
	return path
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestDebouncer_CoalescesTriggers(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	var calls atomic.Int32

	for i := 0; i < 10; i++ {
		d.Trigger(func() { calls.Add(1) })
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(120 * time.Millisecond)

	if n := calls.Load(); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}

func TestDebouncer_LastFunctionWins(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	var got atomic.Int32

	d.Trigger(func() { got.Store(1) })
	d.Trigger(func() { got.Store(2) })
	time.Sleep(80 * time.Millisecond)

	if v := got.Load(); v != 2 {
		t.Errorf("ran function %d, want the last one", v)
	}
}

func TestDebouncer_TriggerAfterUsesOwnWindow(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	var fired atomic.Bool

	d.TriggerAfter(150*time.Millisecond, func() { fired.Store(true) })
	time.Sleep(60 * time.Millisecond)
	if fired.Load() {
		t.Fatal("fired before its own window elapsed")
	}
	if !d.Pending() {
		t.Fatal("expected a pending call")
	}
	if !waitFor(t, 300*time.Millisecond, fired.Load) {
		t.Fatal("never fired")
	}
	if d.Pending() {
		t.Error("still pending after firing")
	}
}

func TestDebouncer_Cancel(t *testing.T) {
	d := NewDebouncer(40 * time.Millisecond)
	var called atomic.Bool

	d.Trigger(func() { called.Store(true) })
	d.Cancel()
	time.Sleep(100 * time.Millisecond)

	if called.Load() {
		t.Error("callback ran after Cancel")
	}
}

func TestDebouncer_DefaultDuration(t *testing.T) {
	if got := NewDebouncer(0).Duration(); got != DefaultDebounceDuration {
		t.Errorf("Duration = %v, want %v", got, DefaultDebounceDuration)
	}
}

func TestWatcher_DetectsChange(t *testing.T) {
	for _, poll := range []bool{false, true} {
		name := "notify"
		if poll {
			name = "poll"
		}
		t.Run(name, func(t *testing.T) {
			path := tempConfig(t)
			var changed atomic.Bool

			w, err := NewWatcher(path,
				WithDebounceDuration(30*time.Millisecond),
				WithPollInterval(30*time.Millisecond),
				WithForcePoll(poll),
				WithOnChange(func() { changed.Store(true) }),
			)
			if err != nil {
				t.Fatal(err)
			}
			if err := w.Start(context.Background()); err != nil {
				t.Fatal(err)
			}
			defer w.Stop()
			time.Sleep(60 * time.Millisecond)

			writeFile(t, path, "batch:\n  group_size: 13\n")

			if !waitFor(t, time.Second, changed.Load) {
				t.Error("change not detected")
			}
			select {
			case <-w.Changed():
			case <-time.After(time.Second):
				t.Error("Changed channel did not fire")
			}
		})
	}
}

func TestWatcher_ForcePollEnv(t *testing.T) {
	t.Setenv(ForcePollEnv, "yes")
	w, err := NewWatcher(tempConfig(t), WithPollInterval(25*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if !w.IsPolling() {
		t.Errorf("expected polling with %s set", ForcePollEnv)
	}
}

func TestWatcher_RemoteFilesystemPolls(t *testing.T) {
	orig := detectFilesystemTypeFunc
	detectFilesystemTypeFunc = func(string) FilesystemType { return FSTypeSSHFS }
	t.Cleanup(func() { detectFilesystemTypeFunc = orig })

	w, err := NewWatcher(tempConfig(t), WithPollInterval(25*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if !w.IsPolling() {
		t.Error("expected polling on a remote filesystem")
	}
	if got := w.FilesystemType(); got != FSTypeSSHFS {
		t.Errorf("FilesystemType = %v, want sshfs", got)
	}
}

func TestWatcher_FileRemoved(t *testing.T) {
	path := tempConfig(t)
	var (
		mu  sync.Mutex
		got error
	)
	w, err := NewWatcher(path,
		WithForcePoll(true),
		WithPollInterval(30*time.Millisecond),
		WithOnError(func(err error) {
			mu.Lock()
			got = err
			mu.Unlock()
		}),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	ok := waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return errors.Is(got, ErrFileRemoved)
	})
	if !ok {
		t.Errorf("error = %v, want ErrFileRemoved", got)
	}
}

func TestWatcher_StartStop(t *testing.T) {
	w, err := NewWatcher(tempConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	if w.IsStarted() {
		t.Fatal("started before Start")
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start = %v, want ErrAlreadyStarted", err)
	}
	w.Stop()
	if w.IsStarted() {
		t.Error("still started after Stop")
	}
	w.Stop()

	if err := w.Start(context.Background()); err != nil {
		t.Errorf("restart after Stop: %v", err)
	}
	w.Stop()
}

func TestWatcher_ContextCancelStopsPolling(t *testing.T) {
	path := tempConfig(t)
	var changed atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())

	w, err := NewWatcher(path,
		WithForcePoll(true),
		WithPollInterval(20*time.Millisecond),
		WithDebounceDuration(10*time.Millisecond),
		WithOnChange(func() { changed.Add(1) }),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	cancel()
	time.Sleep(50 * time.Millisecond)
	writeFile(t, path, "batch:\n  group_size: 9\n")
	time.Sleep(150 * time.Millisecond)

	if n := changed.Load(); n != 0 {
		t.Errorf("changes after cancel = %d, want 0", n)
	}
}

func TestWatcher_PathAndInterval(t *testing.T) {
	path := tempConfig(t)
	w, err := NewWatcher(path, WithPollInterval(500*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	abs, _ := filepath.Abs(path)
	if w.Path() != abs {
		t.Errorf("Path = %s, want %s", w.Path(), abs)
	}
	if w.PollInterval() != 500*time.Millisecond {
		t.Errorf("PollInterval = %v", w.PollInterval())
	}
}

func TestWatchSettings_Reloads(t *testing.T) {
	path := tempConfig(t)
	got := make(chan config.Settings, 4)

	w, err := WatchSettings(context.Background(), path, 30*time.Millisecond,
		func(s config.Settings) { got <- s },
		func(err error) { t.Errorf("unexpected error: %v", err) },
	)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	time.Sleep(60 * time.Millisecond)

	writeFile(t, path, "features:\n  diff-badges: false\n")

	select {
	case s := <-got:
		if s.Enabled(config.FeatureDiffBadges) {
			t.Error("diff-badges should be disabled after reload")
		}
		if !s.Enabled(config.FeatureAnalysisPanel) {
			t.Error("unset feature should stay enabled")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("settings were not reloaded")
	}
}

func TestWatchSettings_BadFileReportsError(t *testing.T) {
	path := tempConfig(t)
	errs := make(chan error, 4)

	w, err := WatchSettings(context.Background(), path, 30*time.Millisecond,
		func(config.Settings) { t.Error("apply called for an invalid file") },
		func(err error) { errs <- err },
	)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	time.Sleep(60 * time.Millisecond)

	writeFile(t, path, "batch:\n  group_size: 0\n")

	select {
	case err := <-errs:
		if err == nil {
			t.Error("expected a reload error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no error reported")
	}
}

func TestFilesystemType_String(t *testing.T) {
	tests := []struct {
		fs   FilesystemType
		want string
	}{
		{FSTypeUnknown, "unknown"},
		{FSTypeLocal, "local"},
		{FSTypeNFS, "nfs"},
		{FSTypeSMB, "smb"},
		{FSTypeSSHFS, "sshfs"},
		{FSTypeFUSE, "fuse"},
		{FilesystemType(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.fs.String(); got != tt.want {
			t.Errorf("FilesystemType(%d) = %q, want %q", tt.fs, got, tt.want)
		}
	}
}

func TestEnvBool(t *testing.T) {
	for _, v := range []string{"1", "true", "TRUE", "yes", "Y", "on", " on "} {
		t.Setenv("MAPDIFF_TEST_BOOL", v)
		if !envBool("MAPDIFF_TEST_BOOL") {
			t.Errorf("envBool(%q) = false", v)
		}
	}
	for _, v := range []string{"", "0", "false", "no", "maybe"} {
		t.Setenv("MAPDIFF_TEST_BOOL", v)
		if envBool("MAPDIFF_TEST_BOOL") {
			t.Errorf("envBool(%q) = true", v)
		}
	}
}

func TestDetectFilesystemType(t *testing.T) {
	if got := DetectFilesystemType(""); got != FSTypeUnknown {
		t.Errorf("empty path = %v, want unknown", got)
	}
	// Missing files are classified by their parent; just make sure it works.
	_ = DetectFilesystemType(filepath.Join(t.TempDir(), "missing", "config.yaml"))
}
