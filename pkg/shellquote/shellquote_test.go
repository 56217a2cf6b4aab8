package shellquote_test

import (
	"testing"

	"ytbatch/pkg/shellquote"
)

func TestJoin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		bin  string
		args []string
		want string
	}{
		{
			name: "no args",
			bin:  "/usr/bin/yt-dlp",
			want: "/usr/bin/yt-dlp",
		},
		{
			name: "simple args stay bare",
			bin:  "yt-dlp",
			args: []string{"--no-playlist", "-x"},
			want: "yt-dlp --no-playlist -x",
		},
		{
			name: "format selector is quoted",
			bin:  "yt-dlp",
			args: []string{"-f", "bestvideo[height<=720]+bestaudio/best"},
			want: `yt-dlp -f "bestvideo[height<=720]+bestaudio/best"`,
		},
		{
			name: "output template with spaces",
			bin:  "yt-dlp",
			args: []string{"-o", "/tmp/my dir/%(title)s.%(ext)s"},
			want: `yt-dlp -o "/tmp/my dir/%(title)s.%(ext)s"`,
		},
		{
			name: "special characters escaped",
			bin:  "yt-dlp",
			args: []string{`a"b$c`},
			want: `yt-dlp "a\"b\$c"`,
		},
		{
			name: "empty argument",
			bin:  "yt-dlp",
			args: []string{""},
			want: `yt-dlp ""`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := shellquote.Join(tc.bin, tc.args); got != tc.want {
				t.Errorf("Join() = %s, want %s", got, tc.want)
			}
		})
	}
}
