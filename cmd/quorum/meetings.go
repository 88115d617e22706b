package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/openquorum/quorum/internal/extract"
)

// loadMeetingsDir discovers meeting inputs in a directory: one meeting per
// <id>.minutes.txt, with an optional <id>.agenda.txt companion. Meetings
// are returned sorted by id so batch output order is stable.
func loadMeetingsDir(dir string) ([]extract.MeetingInput, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading meetings directory: %w", err)
	}

	var meetings []extract.MeetingInput
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".minutes.txt") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".minutes.txt")

		minutes, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}

		// The agenda is optional; titles just stay generic without it.
		var agenda []byte
		agendaPath := filepath.Join(dir, id+".agenda.txt")
		if data, err := os.ReadFile(agendaPath); err == nil {
			agenda = data
		}

		meetings = append(meetings, extract.MeetingInput{
			MeetingID:   id,
			MinutesText: string(minutes),
			AgendaText:  string(agenda),
		})
	}

	sort.Slice(meetings, func(i, j int) bool {
		return meetings[i].MeetingID < meetings[j].MeetingID
	})
	return meetings, nil
}
