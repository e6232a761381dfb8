package tasks

import "github.com/desertthunder/musync/internal/shared"

// Identifiable is anything with a song identity, such as a stored song or a
// provider track.
type Identifiable interface {
	Identity() (title, artist string)
}

// Normalize case-folds and trims text. No other normalization is applied, so
// "Beyoncé" and "Beyonce" are different artists.
func Normalize(text string) string {
	return shared.Normalize(text)
}

// SongKey is the normalized (title, artist) pair joined with a NUL byte.
func SongKey(s Identifiable) string {
	title, artist := s.Identity()
	return Normalize(title) + "\x00" + Normalize(artist)
}

// IsSameSong reports whether a and b have equal normalized titles and artists.
func IsSameSong(a, b Identifiable) bool {
	at, aa := a.Identity()
	bt, ba := b.Identity()
	return Normalize(at) == Normalize(bt) && Normalize(aa) == Normalize(ba)
}

// ComputeMissing returns every source song with no match in existing, in
// source order. Duplicates within source are kept.
func ComputeMissing[S, E Identifiable](source []S, existing []E) []S {
	index := make(map[string]struct{}, len(existing))
	for _, e := range existing {
		index[SongKey(e)] = struct{}{}
	}

	var missing []S
	for _, s := range source {
		if _, ok := index[SongKey(s)]; !ok {
			missing = append(missing, s)
		}
	}
	return missing
}
