package service

import (
	"context"
	"time"

	"github.com/AdamBeresnev/op-arena/internal/bracket"
	"github.com/AdamBeresnev/op-arena/internal/db"
	"github.com/AdamBeresnev/op-arena/internal/events"
	"github.com/AdamBeresnev/op-arena/internal/store"
	users "github.com/AdamBeresnev/op-arena/internal/user"
	crerrors "github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type TargetKind string

const (
	TargetSolo TargetKind = "SOLO"
	TargetTeam TargetKind = "TEAM"
)

// Target names who is being admitted: a single user, or a team with the
// members that will play for it.
type Target struct {
	Kind      TargetKind
	UserID    uuid.UUID
	TeamID    uuid.UUID
	MemberIDs []uuid.UUID
}

func SoloTarget(userID uuid.UUID) Target {
	return Target{Kind: TargetSolo, UserID: userID}
}

func TeamTarget(teamID uuid.UUID, memberIDs ...uuid.UUID) Target {
	return Target{Kind: TargetTeam, TeamID: teamID, MemberIDs: memberIDs}
}

type RegistrationService struct {
	db          *sqlx.DB
	tournaments *store.TournamentStore
	entries     *store.EntryStore
	users       *store.UserStore
	teams       *store.TeamStore
	ratings     RatingLookup
	ranks       RankLookup
	opts        options
}

func NewRegistrationService(database *sqlx.DB, stores *store.Stores, ratings RatingLookup, ranks RankLookup, opts ...Option) *RegistrationService {
	return &RegistrationService{
		db:          database,
		tournaments: stores.Tournaments,
		entries:     stores.Entries,
		users:       stores.Users,
		teams:       stores.Teams,
		ratings:     ratings,
		ranks:       ranks,
		opts:        newOptions(opts),
	}
}

// Register admits target into the tournament or explains why not. All gates
// run inside one transaction that starts by locking the tournament row, and
// the whole procedure is re-run from the lock when the store reports a
// transient conflict.
func (s *RegistrationService) Register(ctx context.Context, tournamentID uuid.UUID, requester users.Identity, target Target) (*bracket.Entry, error) {
	start := time.Now()
	logger := s.opts.logger.With("tournament_id", tournamentID, "requester_id", requester.ID, "target_kind", target.Kind)

	entry, retries, err := withRetry(ctx, s.opts.retry, func() (*bracket.Entry, error) {
		return s.register(ctx, tournamentID, requester, target)
	})
	if err != nil {
		if rej, ok := AsRejection(err); ok {
			s.opts.metrics.ObserveRegistration(string(rej.Kind), time.Since(start), retries)
			logger.InfoContext(ctx, "registration rejected", "kind", rej.Kind, "reason", rej.Message)
			return nil, err
		}
		if db.IsTransient(err) {
			s.opts.metrics.ObserveRegistration("unavailable", time.Since(start), retries)
			logger.ErrorContext(ctx, "registration retries exhausted", "retries", retries, "error", err)
			return nil, crerrors.Mark(crerrors.Wrapf(err, "register in tournament %s", tournamentID), ErrRegistrationUnavailable)
		}
		s.opts.metrics.ObserveRegistration("error", time.Since(start), retries)
		return nil, crerrors.Wrapf(err, "register in tournament %s", tournamentID)
	}

	s.opts.metrics.ObserveRegistration("admitted", time.Since(start), retries)
	logger.InfoContext(ctx, "entry registered", "entry_id", entry.ID, "seed", entry.Seed, "retries", retries)

	participantIDs := make([]uuid.UUID, 0, len(entry.Participants))
	for _, p := range entry.Participants {
		participantIDs = append(participantIDs, p.ID)
	}
	s.opts.publish(ctx, events.TopicEntryRegistered, events.EntryRegistered{
		TournamentID:   entry.TournamentID,
		EntryID:        entry.ID,
		UserID:         entry.UserID,
		TeamID:         entry.TeamID,
		ParticipantIDs: participantIDs,
		Seed:           entry.Seed,
		RegisteredBy:   requester.ID,
		RegisteredAt:   entry.RegisteredAt,
	})

	return entry, nil
}

func (s *RegistrationService) register(ctx context.Context, tournamentID uuid.UUID, requester users.Identity, target Target) (*bracket.Entry, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	tournament, err := s.tournaments.LockTournament(ctx, tx, tournamentID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}

	now := s.opts.now().UTC()
	override := requester.Can(users.CapOverrideRegistrationWindow)

	if tournament.Status != bracket.TournamentRegistration && !override {
		return nil, reject(KindRegistrationClosed, "tournament %q is %s", tournament.Name, tournament.Status)
	}
	if tournament.DeadlinePassed(now) && !override {
		return nil, reject(KindDeadlinePassed, "registration for %q closed at %s",
			tournament.Name, tournament.RegistrationDeadline.UTC().Format(time.RFC3339))
	}

	admitted, err := s.entries.CountAdmittedUnits(ctx, tx, tournament.ID)
	if err != nil {
		return nil, err
	}
	if admitted >= tournament.MaxTeams {
		return nil, reject(KindTournamentFull, "tournament %q is full (%d/%d)", tournament.Name, admitted, tournament.MaxTeams)
	}

	var adm *admission
	switch target.Kind {
	case TargetSolo:
		adm, err = s.admitSolo(ctx, tx, tournament, requester, target)
	case TargetTeam:
		adm, err = s.admitTeam(ctx, tx, tournament, requester, target)
	default:
		err = reject(KindInvalidTeamSize, "unknown registration kind %q", target.Kind)
	}
	if err != nil {
		return nil, err
	}

	conflicts, err := s.entries.FindParticipantConflicts(ctx, tx, tournament.ID, adm.participants)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		return nil, memberConflict(conflicts[0])
	}

	if tournament.RequireRank {
		if err := s.checkRanks(ctx, tx, tournament.GameID, adm.participants); err != nil {
			return nil, err
		}
	}

	entry := &bracket.Entry{
		ID:           uuid.New(),
		TournamentID: tournament.ID,
		UserID:       adm.userID,
		TeamID:       adm.teamID,
		RegisteredAt: now,
	}
	if adm.teamID != nil {
		entry.Seed, err = s.ratings.TeamRatingTx(ctx, tx, *adm.teamID)
	} else {
		entry.Seed, err = s.ratings.UserRatingTx(ctx, tx, *adm.userID)
	}
	if err != nil {
		return nil, crerrors.Wrap(err, "look up seed rating")
	}

	if err := s.entries.CreateEntry(ctx, tx, entry); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrAlreadyRegistered
		}
		return nil, err
	}

	links := make([]bracket.Participant, 0, len(adm.participants))
	for _, id := range adm.participants {
		links = append(links, bracket.Participant{EntryID: entry.ID, TournamentID: tournament.ID, UserID: id})
	}
	if err := s.entries.CreateParticipants(ctx, tx, links); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrMemberAlreadyRegistered
		}
		return nil, err
	}

	projected := []bracket.Entry{*entry}
	if err := s.entries.LoadProjections(ctx, tx, projected); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &projected[0], nil
}

// admission is a target that passed the authorization, shape and duplicate gates.
type admission struct {
	userID       *uuid.UUID
	teamID       *uuid.UUID
	participants []uuid.UUID
}

func (s *RegistrationService) admitSolo(ctx context.Context, tx *sqlx.Tx, tournament *bracket.Tournament, requester users.Identity, target Target) (*admission, error) {
	if target.UserID != requester.ID && !requester.Can(users.CapRegisterOthers) {
		return nil, reject(KindForbidden, "you can only register yourself")
	}
	if _, err := s.users.GetUserTx(ctx, tx, target.UserID); err != nil {
		if db.IsNotFound(err) {
			return nil, reject(KindTargetUserNotFound, "user %s not found", target.UserID)
		}
		return nil, err
	}

	if tournament.IsTeamBased() {
		return nil, reject(KindInvalidTeamSize, "tournament %q requires teams of %d", tournament.Name, tournament.TeamSize)
	}

	exists, err := s.entries.SoloEntryExists(ctx, tx, tournament.ID, target.UserID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, reject(KindAlreadyRegistered, "user is already registered for %q", tournament.Name)
	}

	userID := target.UserID
	return &admission{userID: &userID, participants: []uuid.UUID{userID}}, nil
}

func (s *RegistrationService) admitTeam(ctx context.Context, tx *sqlx.Tx, tournament *bracket.Tournament, requester users.Identity, target Target) (*admission, error) {
	team, err := s.teams.GetTeamTx(ctx, tx, target.TeamID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, reject(KindTeamNotFound, "team %s not found", target.TeamID)
		}
		return nil, err
	}

	roster, err := s.teams.GetRosterTx(ctx, tx, team.ID)
	if err != nil {
		return nil, err
	}

	if team.OwnerID != requester.ID && roster[requester.ID] != users.TeamCaptain && !requester.Can(users.CapRegisterOthers) {
		if _, onTeam := roster[requester.ID]; onTeam {
			return nil, reject(KindNotCaptain, "only the owner or a captain can register %q", team.Name).withTeam(&team.ID, team.Name)
		}
		return nil, reject(KindForbidden, "you are not on team %q", team.Name).withTeam(&team.ID, team.Name)
	}

	if !tournament.IsTeamBased() {
		return nil, reject(KindInvalidTeamSize, "tournament %q is solo only", tournament.Name).withTeam(&team.ID, team.Name)
	}
	if len(target.MemberIDs) != tournament.TeamSize {
		return nil, reject(KindInvalidTeamSize, "expected %d members, got %d", tournament.TeamSize, len(target.MemberIDs)).withTeam(&team.ID, team.Name)
	}

	seen := make(map[uuid.UUID]struct{}, len(target.MemberIDs))
	for _, id := range target.MemberIDs {
		if _, dup := seen[id]; dup {
			return nil, reject(KindInvalidMembers, "member %s is listed twice", id).withMember(id, "").withTeam(&team.ID, team.Name)
		}
		seen[id] = struct{}{}
		if _, ok := roster[id]; !ok {
			return nil, reject(KindInvalidMembers, "user %s is not a member of %q", id, team.Name).withMember(id, "").withTeam(&team.ID, team.Name)
		}
	}

	exists, err := s.entries.TeamEntryExists(ctx, tx, tournament.ID, team.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, reject(KindAlreadyRegistered, "team %q is already registered", team.Name).withTeam(&team.ID, team.Name)
	}

	teamID := team.ID
	participants := make([]uuid.UUID, len(target.MemberIDs))
	copy(participants, target.MemberIDs)
	return &admission{teamID: &teamID, participants: participants}, nil
}

func (s *RegistrationService) checkRanks(ctx context.Context, tx *sqlx.Tx, gameID uuid.UUID, participants []uuid.UUID) error {
	for _, id := range participants {
		ranked, err := s.ranks.HasRankTx(ctx, tx, id, gameID)
		if err != nil {
			return crerrors.Wrap(err, "look up rank")
		}
		if ranked {
			continue
		}

		name := id.String()
		if u, err := s.users.GetUserTx(ctx, tx, id); err == nil {
			name = u.Username
		}
		return reject(KindRankRequired, "%s has no rank for this game", name).withMember(id, name)
	}
	return nil
}

func memberConflict(c store.ParticipantConflict) *RejectionError {
	var teamName string
	if c.TeamName != nil {
		teamName = *c.TeamName
	}

	rej := reject(KindMemberAlreadyRegistered, "%s is already registered", c.Username)
	if teamName != "" {
		rej = reject(KindMemberAlreadyRegistered, "%s is already registered with team %q", c.Username, teamName)
	}
	return rej.withMember(c.UserID, c.Username).withTeam(c.TeamID, teamName)
}
