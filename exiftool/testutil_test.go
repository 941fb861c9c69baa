package exiftool

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeExiftoolScript speaks the -stay_open protocol using shell builtins
// only, so killing it never leaves a child holding the pipes.
//
// FAKE_EXIFTOOL_MODE selects the behaviour of -execute:
//
//	echo    (default) print the batch arguments, one per line, then {ready}
//	spaced  print the arguments joined by spaces, a space and {ready}
//	hang    print nothing
//	die     exit immediately
//	garbage print text that is not JSON
//	deaf    never read stdin at all
//
// With -j the script prints a JSON array with one object per existing file
// (directories are expanded one level). Files with "nodate" in their name
// have no EXIF:DateTimeOriginal. FAKE_EXIFTOOL_LOG receives a line per
// launch and FAKE_EXIFTOOL_ARGS the launch arguments.
const fakeExiftoolScript = `#!/bin/sh
set -f
NL='
'
if [ -n "$FAKE_EXIFTOOL_ARGS" ]; then
  printf '%s\n' "$@" > "$FAKE_EXIFTOOL_ARGS"
fi
if [ -n "$FAKE_EXIFTOOL_LOG" ]; then
  printf 'start\n' >> "$FAKE_EXIFTOOL_LOG"
fi
mode="${FAKE_EXIFTOOL_MODE:-echo}"

emit_file() {
  f="$1"
  if [ "$first" -eq 0 ]; then printf ','; fi
  first=0
  printf '{"SourceFile":"%s"' "$f"
  case "$tag" in
    "")
      printf ',"EXIF:Make":"FakeCam","File:FileSize":1234'
      case "$f" in *nodate*) ;; *) printf ',"EXIF:DateTimeOriginal":"2020:01:02 03:04:05"' ;; esac
      ;;
    EXIF:DateTimeOriginal|DateTimeOriginal)
      case "$f" in *nodate*) ;; *) printf ',"EXIF:DateTimeOriginal":"2020:01:02 03:04:05"' ;; esac
      ;;
    EXIF:Make|Make)
      printf ',"EXIF:Make":"FakeCam"'
      ;;
  esac
  printf '}'
}

run_batch() {
  case "$mode" in
    hang) return ;;
    die) exit 3 ;;
    garbage) printf 'this is not json\n{ready}\n'; return ;;
  esac

  json=0; tag=""; files=""; joined=""
  oldifs="$IFS"; IFS="$NL"
  for a in $args; do
    if [ -z "$joined" ]; then joined="$a"; else joined="$joined $a"; fi
    case "$a" in
      -j) json=1 ;;
      -r) ;;
      -*) tag="${a#-}" ;;
      *) files="$files$a$NL" ;;
    esac
  done

  if [ "$json" -eq 1 ]; then
    first=1
    printf '['
    for f in $files; do
      if [ -d "$f" ]; then
        set +f
        for g in "$f"/*; do
          if [ -f "$g" ]; then emit_file "$g"; fi
        done
        set -f
      elif [ -f "$f" ]; then
        emit_file "$f"
      else
        printf 'Error: File not found - %s\n' "$f" >&2
      fi
    done
    printf ']\n{ready}\n'
  elif [ "$mode" = "spaced" ]; then
    printf '%s {ready}\n' "$joined"
  else
    printf '%s' "$args"
    printf '{ready}\n'
  fi
  IFS="$oldifs"
}

if [ "$mode" = "deaf" ]; then
  while :; do :; done
fi

args=""
while IFS= read -r line; do
  case "$line" in
    -stay_open)
      IFS= read -r next
      if [ "$next" = "False" ]; then exit 0; fi
      ;;
    -execute)
      run_batch
      args=""
      ;;
    *)
      args="$args$line$NL"
      ;;
  esac
done
exit 0
`

// writeFakeExiftool writes the fake exiftool script into a temp dir and
// returns its path.
func writeFakeExiftool(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "exiftool")
	require.NoError(t, os.WriteFile(path, []byte(fakeExiftoolScript), 0o755))
	return path
}

// newFakeClient returns a client bound to a fresh fake exiftool that is
// terminated when the test ends.
func newFakeClient(t *testing.T, opts ...Option) *ExifTool {
	t.Helper()
	opts = append([]Option{WithExecutable(writeFakeExiftool(t))}, opts...)
	et := New(opts...)
	t.Cleanup(et.Terminate)
	return et
}

// writeImages creates empty files in a temp dir and returns their paths.
func writeImages(t *testing.T, names ...string) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(paths[i], nil, 0o644))
	}
	return paths
}

// countStarts returns how many times the fake was launched.
func countStarts(t *testing.T, logPath string) int {
	t.Helper()
	data, err := os.ReadFile(logPath)
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(t, err)
	return strings.Count(string(data), "start\n")
}
