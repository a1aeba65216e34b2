package archiver

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pkg.mon.icu/wumpus/internal/config"
	"pkg.mon.icu/wumpus/internal/storage/entity"
)

// Store runs units of work in transactions.
type Store interface {
	Begin(ctx context.Context, fn func(entity.Querier) error) error
}

type Options struct {
	// Full discards saved cursors and walks every channel from the start.
	Full bool
}

type Archiver struct {
	cfg     *config.Archive
	logger  *zap.SugaredLogger
	storage Store
	source  Source
}

func New(cfg *config.Archive, log *zap.Logger, store Store, source Source) *Archiver {
	return &Archiver{cfg: cfg, logger: log.Sugar(), storage: store, source: source}
}

// run is the state of one ArchiveGuild call.
type run struct {
	report *Report
	opts   Options
	logger *zap.SugaredLogger
	// seen holds users stored during this run.
	seen *snowflakeSet
}

func (r *run) setState(s State) {
	r.logger.Debugf("Run state %s -> %s.", r.report.State, s)
	r.report.State = s
}

// ArchiveGuild walks the guild's metadata, members and message history into
// the store. Per-channel failures are recorded in the report without stopping
// other channels. The returned error is set when the run couldn't proceed
// past the guild's metadata, or when ctx was cancelled, in which case the
// report is Paused and a later call resumes where this one stopped.
func (a *Archiver) ArchiveGuild(ctx context.Context, guildID entity.Snowflake, opts Options) (*Report, error) {
	runID := uuid.New()
	r := &run{
		report: &Report{RunID: runID, GuildID: guildID, State: NotStarted, StartedAt: entity.Now()},
		opts:   opts,
		logger: a.logger.With("run", runID.String(), "guild", guildID.String()),
		seen:   newSnowflakeSet(),
	}
	r.logger.Infof("Archiving guild %s.", guildID)

	err := a.archive(ctx, r)
	r.report.FinishedAt = entity.Now()
	switch {
	case ctx.Err() != nil:
		r.setState(Paused)
		r.logger.Infof("Paused archiving guild %s.", guildID)
		return r.report, ctx.Err()
	case err != nil:
		r.setState(Failed)
		r.report.Err = err
		r.logger.Errorf("Failed to archive guild %s: %s.", guildID, err)
		return r.report, err
	}

	txCtx := context.WithoutCancel(ctx)
	if err := a.storage.Begin(txCtx, func(q entity.Querier) error {
		return entity.TouchGuildScrape(txCtx, q, guildID)
	}); err != nil {
		r.logger.Warnf("Failed to record scrape of guild %s: %s.", guildID, err)
	}

	if failed := r.report.Failed(); len(failed) > 0 {
		r.setState(Failed)
		r.logger.Warnf("Finished archiving guild %s with %d failed channels.", guildID, len(failed))
	} else {
		r.setState(Completed)
		r.logger.Infof("Finished archiving guild %s: %d messages in %d channels.", guildID, r.report.Messages(), len(r.report.Channels))
	}
	return r.report, nil
}

func (a *Archiver) archive(ctx context.Context, r *run) error {
	guildID := r.report.GuildID

	var dg *discordgo.Guild
	if err := a.fetch(ctx, "fetch guild", func(ctx context.Context) (err error) {
		dg, err = a.source.Guild(ctx, guildID)
		return err
	}); err != nil {
		return err
	}
	g, err := entity.NewGuildFromDiscord(dg)
	if err != nil {
		return err
	}
	if g.ID != guildID {
		return fmt.Errorf("source returned guild %s for %s", g.ID, guildID)
	}
	if err := a.storage.Begin(ctx, func(q entity.Querier) error {
		return entity.UpsertGuild(ctx, q, g)
	}); err != nil {
		return fmt.Errorf("failed to store guild: %w", err)
	}

	r.setState(EnumeratingChannels)
	channels, err := a.enumerate(ctx, r)
	if err != nil {
		return err
	}

	if a.cfg.Members {
		r.setState(ArchivingMembers)
		if err := a.archiveMembers(ctx, r); err != nil {
			if !inaccessible(err) {
				return err
			}
			r.report.Warnings = append(r.report.Warnings, fmt.Sprintf("members: %s", err))
			r.logger.Warnf("Skipping members of guild %s: %s.", guildID, err)
		}
	}

	r.setState(ArchivingChannels)
	var eg errgroup.Group
	eg.SetLimit(a.cfg.Concurrency)
	for _, ch := range channels {
		cr := &ChannelReport{ID: ch.ID, Name: ch.Name, Kind: ch.Kind(), State: NotStarted, Cursor: ch.Cursor(), Total: ch.MessageCount}
		r.report.Channels = append(r.report.Channels, cr)
		eg.Go(func() error {
			a.archiveChannel(ctx, r, ch, cr)
			return nil
		})
	}
	return eg.Wait()
}

// enumerate stores the guild's roles and channels and returns the channels to
// archive, ordered by position.
func (a *Archiver) enumerate(ctx context.Context, r *run) ([]*entity.Channel, error) {
	guildID := r.report.GuildID

	var dcs []*discordgo.Channel
	if err := a.fetch(ctx, "fetch channels", func(ctx context.Context) (err error) {
		dcs, err = a.source.Channels(ctx, guildID)
		return err
	}); err != nil {
		return nil, err
	}
	var drs []*discordgo.Role
	if err := a.fetch(ctx, "fetch roles", func(ctx context.Context) (err error) {
		drs, err = a.source.Roles(ctx, guildID)
		return err
	}); err != nil {
		return nil, err
	}

	roles := make([]*entity.Role, 0, len(drs))
	for _, dr := range drs {
		role, err := entity.NewRoleFromDiscord(guildID, dr)
		if err != nil {
			r.logger.Warnf("Skipping role: %s.", err)
			continue
		}
		roles = append(roles, role)
	}

	channels := make([]*entity.Channel, 0, len(dcs))
	for _, dc := range dcs {
		ch, err := entity.NewChannelFromDiscord(dc)
		if err != nil {
			r.logger.Warnf("Skipping channel: %s.", err)
			continue
		}
		if ch.GuildID != guildID {
			r.logger.Warnf("Skipping channel %s of guild %s.", ch.ID, ch.GuildID)
			continue
		}
		if a.cfg.Excluded(ch.ID, ch.Name) {
			r.logger.Debugf("Skipping excluded channel %s (%s).", ch.ID, ch.Name)
			continue
		}
		channels = append(channels, ch)
	}
	channels = lo.UniqBy(channels, func(c *entity.Channel) entity.Snowflake { return c.ID })

	if err := a.storage.Begin(ctx, func(q entity.Querier) error {
		if err := entity.UpsertRoles(ctx, q, roles); err != nil {
			return fmt.Errorf("failed to store roles: %w", err)
		}
		if err := entity.UpsertChannels(ctx, q, channels); err != nil {
			return fmt.Errorf("failed to store channels: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	slices.SortStableFunc(channels, func(x, y *entity.Channel) int {
		if x.Position != y.Position {
			return x.Position - y.Position
		}
		return cmp.Compare(x.ID, y.ID)
	})
	r.logger.Infof("Enumerated %d channels and %d roles.", len(channels), len(roles))
	return channels, nil
}

const memberPageSize = 1000

func (a *Archiver) archiveMembers(ctx context.Context, r *run) error {
	guildID := r.report.GuildID
	var after entity.Snowflake
	for {
		var page []*discordgo.Member
		if err := a.fetch(ctx, "fetch members", func(ctx context.Context) (err error) {
			page, err = a.source.Members(ctx, guildID, after, memberPageSize)
			return err
		}); err != nil {
			return err
		}

		members := make([]*entity.Member, 0, len(page))
		for _, dm := range page {
			m, err := entity.NewMemberFromDiscord(guildID, dm)
			if err != nil {
				r.logger.Warnf("Skipping member: %s.", err)
				continue
			}
			members = append(members, m)
		}

		if len(members) > 0 {
			users := lo.Map(members, func(m *entity.Member, _ int) *entity.User { return m.User })
			txCtx := context.WithoutCancel(ctx)
			if err := a.storage.Begin(txCtx, func(q entity.Querier) error {
				if err := a.upsertUnseenUsers(txCtx, q, r, users); err != nil {
					return err
				}
				return entity.UpsertMembers(txCtx, q, members)
			}); err != nil {
				return fmt.Errorf("failed to store members: %w", err)
			}
			r.seen.Add(lo.Map(users, func(u *entity.User, _ int) entity.Snowflake { return u.ID })...)
			r.report.Members += len(members)
		}

		// malformed members still move the cursor so a bad page isn't refetched
		next := maxID(page, func(m *discordgo.Member) string {
			if m.User == nil {
				return ""
			}
			return m.User.ID
		})
		if len(page) < memberPageSize || next <= after {
			return nil
		}
		after = next
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// upsertUnseenUsers stores the users that weren't stored earlier in the run.
// The caller marks them seen once the transaction commits.
func (a *Archiver) upsertUnseenUsers(ctx context.Context, q entity.Querier, r *run, users []*entity.User) error {
	users = lo.UniqBy(users, func(u *entity.User) entity.Snowflake { return u.ID })
	for _, u := range users {
		if r.seen.Contains(u.ID) {
			continue
		}
		if err := entity.UpsertUser(ctx, q, u); err != nil {
			return fmt.Errorf("failed to store user %s: %w", u.ID, err)
		}
	}
	return nil
}

func errorText(err error) *string {
	if err == nil {
		return nil
	}
	s := err.Error()
	return &s
}
