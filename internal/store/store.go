package store

import "github.com/jmoiron/sqlx"

// Stores bundles the repositories that share one database handle.
type Stores struct {
	Tournaments *TournamentStore
	Entries     *EntryStore
	Matches     *MatchStore
	Users       *UserStore
	Teams       *TeamStore
	Ratings     *RatingStore
}

func New(db *sqlx.DB) *Stores {
	return &Stores{
		Tournaments: NewTournamentStore(db),
		Entries:     NewEntryStore(db),
		Matches:     NewMatchStore(db),
		Users:       NewUserStore(db),
		Teams:       NewTeamStore(db),
		Ratings:     NewRatingStore(db),
	}
}
