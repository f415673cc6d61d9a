package hostfuncs

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
)

// hostStart anchors get_time.
var hostStart = time.Now()

// SystemModule exposes clock, environment and filesystem helpers.
var SystemModule = OpenFunc(openSystem)

func openSystem(ns Namespace) error {
	ns.SetFunc("get_time", systemGetTime)
	ns.SetFunc("sleep", systemSleep)
	ns.SetFunc("getenv", systemGetenv)
	ns.SetFunc("setenv", systemSetenv)
	ns.SetFunc("get_platform", systemGetPlatform)
	ns.SetFunc("absolute_path", systemAbsolutePath)
	ns.SetFunc("get_file_info", systemGetFileInfo)
	ns.SetFunc("list_dir", systemListDir)
	ns.SetFunc("mkdir", systemMkdir)
	ns.SetFunc("rmdir", systemRmdir)
	ns.SetFunc("chdir", systemChdir)
	ns.SetFunc("get_cwd", systemGetCwd)
	ns.SetFunc("fuzzy_match", systemFuzzyMatch)
	ns.SetFunc("exec", systemExec)
	return nil
}

// systemGetTime returns monotonic seconds since the host started.
func systemGetTime(_ context.Context, _ Args) ([]any, error) {
	return []any{time.Since(hostStart).Seconds()}, nil
}

func systemSleep(ctx context.Context, args Args) ([]any, error) {
	secs, err := args.Number(1)
	if err != nil {
		return nil, err
	}
	timer := time.NewTimer(time.Duration(secs * float64(time.Second)))
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
	return nil, nil
}

func systemGetenv(_ context.Context, args Args) ([]any, error) {
	key, err := args.String(1)
	if err != nil {
		return nil, err
	}
	if v, ok := os.LookupEnv(key); ok {
		return []any{v}, nil
	}
	return []any{nil}, nil
}

func systemSetenv(_ context.Context, args Args) ([]any, error) {
	key, err := args.String(1)
	if err != nil {
		return nil, err
	}
	value, err := args.String(2)
	if err != nil {
		return nil, err
	}
	return []any{os.Setenv(key, value) == nil}, nil
}

// PlatformName returns the platform name scripts expect, e.g. "Linux".
func PlatformName() string {
	switch runtime.GOOS {
	case "linux":
		return "Linux"
	case "windows":
		return "Windows"
	case "darwin":
		return "Mac OS X"
	case "freebsd":
		return "FreeBSD"
	case "openbsd":
		return "OpenBSD"
	case "netbsd":
		return "NetBSD"
	case "android":
		return "Android"
	}
	return runtime.GOOS
}

func systemGetPlatform(_ context.Context, _ Args) ([]any, error) {
	return []any{PlatformName()}, nil
}

func systemAbsolutePath(_ context.Context, args Args) ([]any, error) {
	path, err := args.String(1)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return []any{nil}, nil
	}
	return []any{abs}, nil
}

func systemGetFileInfo(_ context.Context, args Args) ([]any, error) {
	path, err := args.String(1)
	if err != nil {
		return nil, err
	}
	lst, err := os.Lstat(path)
	if err != nil {
		return []any{nil, err.Error()}, nil
	}
	st := lst
	symlink := lst.Mode()&os.ModeSymlink != 0
	if symlink {
		if target, err := os.Stat(path); err == nil {
			st = target
		}
	}
	info := map[string]any{
		"modified": float64(st.ModTime().UnixNano()) / float64(time.Second),
		"size":     st.Size(),
		"symlink":  symlink,
	}
	switch {
	case st.IsDir():
		info["type"] = "dir"
	case st.Mode().IsRegular():
		info["type"] = "file"
	}
	return []any{info}, nil
}

func systemListDir(_ context.Context, args Args) ([]any, error) {
	path, err := args.String(1)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return []any{nil, err.Error()}, nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	out := make([]any, len(names))
	for i, n := range names {
		out[i] = n
	}
	return []any{out}, nil
}

func systemMkdir(_ context.Context, args Args) ([]any, error) {
	return pathOp(args, func(p string) error { return os.Mkdir(p, 0o755) })
}

func systemRmdir(_ context.Context, args Args) ([]any, error) {
	return pathOp(args, func(p string) error {
		st, err := os.Stat(p)
		if err != nil {
			return err
		}
		if !st.IsDir() {
			return &os.PathError{Op: "rmdir", Path: p, Err: os.ErrInvalid}
		}
		return os.Remove(p)
	})
}

func systemChdir(_ context.Context, args Args) ([]any, error) {
	return pathOp(args, os.Chdir)
}

func pathOp(args Args, op func(string) error) ([]any, error) {
	path, err := args.String(1)
	if err != nil {
		return nil, err
	}
	if err := op(path); err != nil {
		return []any{false, err.Error()}, nil
	}
	return []any{true}, nil
}

func systemGetCwd(_ context.Context, _ Args) ([]any, error) {
	wd, err := os.Getwd()
	if err != nil {
		return []any{nil, err.Error()}, nil
	}
	return []any{wd}, nil
}

func systemFuzzyMatch(_ context.Context, args Args) ([]any, error) {
	str, err := args.String(1)
	if err != nil {
		return nil, err
	}
	pattern, err := args.String(2)
	if err != nil {
		return nil, err
	}
	score, ok := FuzzyMatch(str, pattern, args.Bool(3))
	if !ok {
		return []any{nil}, nil
	}
	return []any{score}, nil
}

// FuzzyMatch scores how well pattern matches str. Consecutive matches raise
// the score, skipped characters lower it, and case mismatches cost one
// point; longer candidates rank lower. With files set, matching runs from
// the end of both strings so that file names weigh more than their
// directories. ok is false when pattern is not a subsequence of str.
func FuzzyMatch(str, pattern string, files bool) (score int, ok bool) {
	s, p := []byte(str), []byte(pattern)
	if files {
		reverseBytes(s)
		reverseBytes(p)
	}
	i, j, run := 0, 0, 0
	for i < len(s) && j < len(p) {
		for i < len(s) && s[i] == ' ' {
			i++
		}
		for j < len(p) && p[j] == ' ' {
			j++
		}
		if i >= len(s) || j >= len(p) {
			break
		}
		if lowerASCII(s[i]) == lowerASCII(p[j]) {
			score += run * 10
			if s[i] != p[j] {
				score--
			}
			run++
			j++
		} else {
			score -= 10
			run = 0
		}
		i++
	}
	for j < len(p) && p[j] == ' ' {
		j++
	}
	if j < len(p) {
		return 0, false
	}
	return score - len(s)*10, true
}

func lowerASCII(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}

func reverseBytes(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

// systemExec starts a shell command in the background without waiting.
func systemExec(_ context.Context, args Args) ([]any, error) {
	command, err := args.String(1)
	if err != nil {
		return nil, err
	}
	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		//nolint:gosec // G204: running a user command is the purpose of system.exec
		cmd = exec.Command("cmd", "/c", command)
	} else {
		//nolint:gosec // G204: running a user command is the purpose of system.exec
		cmd = exec.Command("sh", "-c", strings.TrimSpace(command))
	}
	if err := cmd.Start(); err != nil {
		return []any{false, err.Error()}, nil
	}
	go func() { _ = cmd.Wait() }()
	return []any{true}, nil
}
