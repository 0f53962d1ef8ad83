// Package format picks one fetchable variant out of the descriptors the
// extraction collaborator resolved for a source URL. Selection is pure and
// deterministic; descriptors are never mutated.
package format

import (
	"strings"

	"github.com/vidfetch/vidfetch/internal/domain"
)

var qualityHeights = map[domain.Quality]int{
	domain.Quality360p:  360,
	domain.Quality480p:  480,
	domain.Quality720p:  720,
	domain.Quality1080p: 1080,
}

// Select returns the descriptor best matching the quality preference, or
// ErrNoFormat when the list is empty.
func Select(formats []domain.FormatDescriptor, quality domain.Quality) (domain.FormatDescriptor, error) {
	if len(formats) == 0 {
		return domain.FormatDescriptor{}, domain.ErrNoFormat
	}

	switch quality {
	case domain.QualityAuto, domain.QualityBest, "":
		return pickBest(formats), nil
	case domain.QualityWorst:
		return pickWorst(formats), nil
	}

	if target, ok := qualityHeights[quality]; ok {
		return pickClosest(formats, target), nil
	}

	// Unknown preference: fall back to the first candidate, matching the
	// extraction collaborator's own ordering.
	return formats[0], nil
}

// score prefers taller video, the mp4 container, and muxed streams over
// audio-only variants.
func score(f domain.FormatDescriptor) int {
	s := f.Height
	if strings.EqualFold(f.Ext, "mp4") {
		s += 100
	}
	if !strings.Contains(strings.ToLower(f.FormatID), "audio") {
		s += 50
	}
	return s
}

func pickBest(formats []domain.FormatDescriptor) domain.FormatDescriptor {
	best := formats[0]
	bestScore := score(best)
	for _, f := range formats[1:] {
		if s := score(f); s > bestScore {
			best, bestScore = f, s
		}
	}
	return best
}

func pickWorst(formats []domain.FormatDescriptor) domain.FormatDescriptor {
	worst := formats[0]
	worstScore := score(worst)
	for _, f := range formats[1:] {
		if s := score(f); s < worstScore {
			worst, worstScore = f, s
		}
	}
	return worst
}

func pickClosest(formats []domain.FormatDescriptor, target int) domain.FormatDescriptor {
	best := formats[0]
	bestDiff := heightDiff(best, target)
	for _, f := range formats[1:] {
		if d := heightDiff(f, target); d < bestDiff {
			best, bestDiff = f, d
		}
	}
	return best
}

func heightDiff(f domain.FormatDescriptor, target int) int {
	d := f.Height - target
	if d < 0 {
		d = -d
	}
	return d
}
