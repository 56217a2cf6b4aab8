package downloader_test

import (
	"testing"
	"testing/synctest"
	"time"

	"ytbatch/internal/downloader"
)

func TestParseYtdlpStdout(t *testing.T) {
	tests := []struct {
		name   string
		stdout string
		want   []downloader.ResultJSON
	}{
		{
			name:   "json then filepath on next line assigns filename",
			stdout: `{"id": "x1", "title": "With file", "filename": "/tmp/pre.webm"}` + "\n/tmp/With file.mp3\n",
			want:   []downloader.ResultJSON{{ID: "x1", Title: "With file", Filename: "/tmp/With file.mp3"}},
		},
		{
			name:   "filepath only",
			stdout: "/srv/out/Talk.mp4\n",
			want:   []downloader.ResultJSON{{Filename: "/srv/out/Talk.mp4"}},
		},
		{
			name: "blanks and stray lines",
			stdout: "\n[youtube] Extracting URL\n" +
				`{"id": "one", "title": "First"}` + "\n" +
				"/tmp/first.mp4\n\n" +
				"WARNING: something\n",
			want: []downloader.ResultJSON{{ID: "one", Title: "First", Filename: "/tmp/first.mp4"}},
		},
		{
			name:   "json without path",
			stdout: `{"id": "two", "title": "Second"}`,
			want:   []downloader.ResultJSON{{ID: "two", Title: "Second"}},
		},
		{
			name:   "empty",
			stdout: "",
			want:   nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := downloader.ParseYtdlpStdout(tc.stdout)
			if err != nil {
				t.Fatalf("ParseYtdlpStdout() failed: %v", err)
			}

			if len(got) != len(tc.want) {
				t.Fatalf("got %d results, want %d", len(got), len(tc.want))
			}

			for idx, result := range got {
				if result.Title != tc.want[idx].Title {
					t.Errorf("got Title = %q, want %q", result.Title, tc.want[idx].Title)
				}

				if result.ID != tc.want[idx].ID {
					t.Errorf("got ID = %q, want %q", result.ID, tc.want[idx].ID)
				}

				if result.Filename != tc.want[idx].Filename {
					t.Errorf("got Filename = %q, want %q", result.Filename, tc.want[idx].Filename)
				}
			}
		})
	}
}

func TestSimulator(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		sim := downloader.NewSimulator(discard(), 2*time.Second)

		start := time.Now()

		path, err := sim.Download(t.Context(), "https://www.youtube.com/watch?v=AAAAAAAAAAA", downloader.Options{
			Output:       "/out/%(title)s.%(ext)s",
			ExtractAudio: true,
			AudioFormat:  "mp3",
		})
		if err != nil {
			t.Fatalf("Download() failed: %v", err)
		}

		if path != "/out/AAAAAAAAAAA.mp3" {
			t.Errorf("Download() = %q, want /out/AAAAAAAAAAA.mp3", path)
		}

		if elapsed := time.Since(start); elapsed != 2*time.Second {
			t.Errorf("Download() took %v, want 2s", elapsed)
		}
	})
}
