// Package profile selects which source profiles each run pulls from.
// Selection is uniform random over profiles not used recently; a bounded
// recent-memory file persisted between runs biases sampling away from
// repeats.
package profile

import (
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"

	"github.com/chorusbot/chorus/pkg/fn"
	"github.com/chorusbot/chorus/pkg/jsonstore"
)

// memory is the persisted recent-profile state, newest first.
type memory struct {
	Recent []string `json:"recent"`
}

// Rotator samples profiles for a run and maintains the recent memory.
type Rotator struct {
	profilesPath string
	memoryPath   string
	quota        int
	memoryBound  int

	perm func(n int) []int // test seam; defaults to rand.Perm
}

// NewRotator builds a rotator over the given profile list and memory file.
func NewRotator(profilesPath, memoryPath string, quota, memoryBound int) *Rotator {
	return &Rotator{
		profilesPath: profilesPath,
		memoryPath:   memoryPath,
		quota:        quota,
		memoryBound:  memoryBound,
		perm:         rand.Perm,
	}
}

// Select returns this run's profile sample and persists the updated recent
// memory. A missing profile list file is a configuration error.
func (r *Rotator) Select() ([]string, error) {
	profiles, err := r.loadProfiles()
	if err != nil {
		return nil, err
	}

	mem := jsonstore.Load[memory](r.memoryPath)
	recent := make(map[string]bool, len(mem.Recent))
	for _, p := range mem.Recent {
		recent[p] = true
	}

	candidates := fn.Filter(profiles, func(p string) bool { return !recent[p] })
	if len(candidates) < r.quota {
		candidates = profiles
	}

	n := min(r.quota, len(candidates))
	selected := make([]string, 0, n)
	for _, idx := range r.perm(len(candidates))[:n] {
		selected = append(selected, candidates[idx])
	}

	mem.Recent = append(append([]string{}, selected...), mem.Recent...)
	if len(mem.Recent) > r.memoryBound {
		mem.Recent = mem.Recent[:r.memoryBound]
	}
	if err := jsonstore.Save(r.memoryPath, mem); err != nil {
		return nil, fmt.Errorf("save recent memory: %w", err)
	}
	return selected, nil
}

// loadProfiles reads the newline-delimited profile list, skipping blanks.
func (r *Rotator) loadProfiles() ([]string, error) {
	data, err := os.ReadFile(r.profilesPath)
	if err != nil {
		return nil, fmt.Errorf("profile list %s: %w", r.profilesPath, err)
	}
	var profiles []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			profiles = append(profiles, line)
		}
	}
	if len(profiles) < r.quota {
		log.Printf("warning: only %d profiles available, want %d; using all", len(profiles), r.quota)
	}
	return profiles, nil
}
