package cron

import (
	"os"
	"testing"
)

func TestClientFeedSingleRead(t *testing.T) {
	var c Client
	frame := []byte{0x01, 0x02, 0x03, 0x04, 0x2a, 0x00}

	n, complete := c.Feed(frame)
	if !complete {
		t.Fatalf("Feed: want complete on a full frame")
	}
	want := Notification{Cookie: 0x04030201, ProgramID: 0x002a}
	if n != want {
		t.Errorf("Feed() = %+v, want %+v", n, want)
	}
}

func TestClientFeedSplitAcrossReads(t *testing.T) {
	var c Client
	frame := []byte{0x01, 0x02, 0x03, 0x04, 0x2a, 0x00}

	for i, b := range frame {
		n, complete := c.Feed([]byte{b})
		if i < len(frame)-1 {
			if complete {
				t.Fatalf("Feed: complete too early at byte %d", i)
			}
			continue
		}
		want := Notification{Cookie: 0x04030201, ProgramID: 0x002a}
		if !complete {
			t.Fatalf("Feed: want complete on final byte")
		}
		if n != want {
			t.Errorf("Feed() = %+v, want %+v", n, want)
		}
	}
}

func TestCleanupFilesMissingDirIsNotError(t *testing.T) {
	if err := CleanupFiles("/nonexistent/redapid-test-dir"); err != nil {
		t.Errorf("CleanupFiles on a missing dir: %v", err)
	}
}

func TestCleanupFilesRemovesOnlyPrefixed(t *testing.T) {
	dir := t.TempDir()
	keep := dir + "/other-file"
	drop := dir + "/" + FilePrefix + "7"

	for _, path := range []string{keep, drop} {
		if err := os.WriteFile(path, nil, 0644); err != nil {
			t.Fatalf("WriteFile(%s): %v", path, err)
		}
	}

	if err := CleanupFiles(dir); err != nil {
		t.Fatalf("CleanupFiles: %v", err)
	}

	if _, err := os.Stat(keep); err != nil {
		t.Errorf("%s was removed, want kept: %v", keep, err)
	}
	if _, err := os.Stat(drop); !os.IsNotExist(err) {
		t.Errorf("%s was not removed (stat err = %v)", drop, err)
	}
}
