package library

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"clipvault/internal/resolve"
)

func TestRecordJSONRoundTrip(t *testing.T) {
	path := "/media/My Clip.mp4"
	in := MediaRecord{
		ID:             "3f6b0a1c-0000-0000-0000-000000000001",
		Title:          "My Clip",
		SourceDomain:   "example.com",
		ThumbnailURL:   "https://example.com/t.jpg",
		DirectMediaURL: "https://cdn.example.com/v.mp4",
		FilePath:       &path,
		FileSize:       "1.2 MB",
		DateAdded:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Progress:       1,
		IsCompleted:    true,
		AvailableFormats: []resolve.Format{
			{Quality: "HD", URL: "https://cdn.example.com/v.mp4", Size: 1234567},
		},
		SelectedFormat: "HD",
	}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	var out MediaRecord
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip changed the record:\n in: %+v\nout: %+v", in, out)
	}
}

func TestNewRecord(t *testing.T) {
	res := &resolve.Result{
		Title:        "Clip",
		Thumbnail:    "https://x/t.jpg",
		SourceDomain: "example.com",
		Formats:      []resolve.Format{{Quality: "HD", URL: "https://x/v.mp4", Size: 2048}},
	}
	rec := NewRecord(res, res.Formats[0])

	if rec.ID == "" {
		t.Error("missing id")
	}
	if rec.IsDownloading || rec.IsCompleted || rec.Progress != 0 {
		t.Errorf("fresh record not idle: %+v", rec)
	}
	if rec.DirectMediaURL != "https://x/v.mp4" || rec.SelectedFormat != "HD" {
		t.Errorf("format selection not applied: %+v", rec)
	}
	if rec.FileSize != "2.0 KB" {
		t.Errorf("fileSize = %q", rec.FileSize)
	}
}

func TestHumanSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "Unknown"},
		{-1, "Unknown"},
		{512, "512 B"},
		{2048, "2.0 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
	}
	for _, tt := range tests {
		if got := humanSize(tt.in); got != tt.want {
			t.Errorf("humanSize(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
