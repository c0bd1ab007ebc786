package parser

import "testing"

const lsFixture = `total 48
drwxr-xr-x  6 root   sdcard_rw 4096 2024-03-10 09:00 .
drwxr-xr-x 20 root   root      4096 2024-03-01 12:00 ..
drwxrwxrwx  8 root   sdcard_rw 4096 2024-03-05 18:22 DCIM
drwxrwxrwx 12 root   sdcard_rw 4096 2024-03-02 07:41 Android
-rw-rw-r--  1 root   sdcard_rw 1024 2024-03-10 09:15 notes.txt
lrwxrwxrwx  1 root   root        12 2024-03-01 00:00 sdcard -> /sdcard
-rw-rw-r--. 1 root   sdcard_rw  512 2024-02-20 14:30 labeled.txt
this line is garbage and should be skipped
`

func TestParseLongListing(t *testing.T) {
	entries := ParseLongListing(lsFixture)
	if len(entries) != 7 {
		t.Fatalf("got %d entries, want 7", len(entries))
	}

	dirCount := 0
	for _, e := range entries {
		if e.IsDir {
			dirCount++
		}
	}
	if dirCount != 4 {
		t.Errorf("got %d directories, want 4", dirCount)
	}

	byName := make(map[string]FileEntry)
	for _, e := range entries {
		byName[e.Name] = e
	}

	notes, ok := byName["notes.txt"]
	if !ok {
		t.Fatal("notes.txt not found")
	}
	if notes.Size != 1024 {
		t.Errorf("notes.txt size = %d, want 1024", notes.Size)
	}
	if notes.Date != "2024-03-10 09:15" {
		t.Errorf("notes.txt date = %q, want %q", notes.Date, "2024-03-10 09:15")
	}

	link, ok := byName["sdcard"]
	if !ok {
		t.Fatal("sdcard symlink entry not found (should have target stripped)")
	}
	if link.Name != "sdcard" {
		t.Errorf("symlink name = %q, want %q (no -> target)", link.Name, "sdcard")
	}

	labeled, ok := byName["labeled.txt"]
	if !ok {
		t.Fatal("labeled.txt (SELinux-suffixed permissions) not found")
	}
	if labeled.Permissions[len(labeled.Permissions)-1] != '.' {
		t.Errorf("labeled.txt permissions = %q, want trailing SELinux dot", labeled.Permissions)
	}
}

func TestParseLongListingSkipsMalformed(t *testing.T) {
	entries := ParseLongListing("not a listing line at all\n\n")
	if len(entries) != 0 {
		t.Errorf("got %d entries from garbage input, want 0", len(entries))
	}
}
