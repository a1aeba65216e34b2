package archiver

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"pkg.mon.icu/wumpus/internal/storage/entity"
)

const reactionUserPageSize = 100

// archiveChannel pages through the channel's history after its saved cursor.
// Each page is stored in one transaction together with the new cursor, so an
// interrupted pass loses at most the page that was being fetched.
func (a *Archiver) archiveChannel(ctx context.Context, r *run, ch *entity.Channel, cr *ChannelReport) {
	log := r.logger.With("channel", ch.ID.String())
	txCtx := context.WithoutCancel(ctx)

	if ctx.Err() != nil {
		a.finishChannel(txCtx, log, cr, Paused, nil)
		return
	}
	if !ch.HasMessages() {
		log.Debugf("Channel %s is a %s channel without message history.", ch.ID, ch.Kind())
		a.finishChannel(txCtx, log, cr, Completed, nil)
		return
	}

	cursor, err := a.startChannel(txCtx, r, ch)
	if err != nil {
		a.finishChannel(txCtx, log, cr, Failed, err)
		return
	}
	cr.Cursor = cursor
	if cursor != 0 {
		log.Debugf("Resuming channel %s after message %s.", ch.ID, cursor)
	}

	state, err := a.paginate(ctx, r, log, ch, cr)
	a.finishChannel(txCtx, log, cr, state, err)
}

func (a *Archiver) startChannel(ctx context.Context, r *run, ch *entity.Channel) (entity.Snowflake, error) {
	var cursor entity.Snowflake
	err := a.storage.Begin(ctx, func(q entity.Querier) error {
		if r.opts.Full {
			if err := entity.ResetChannelCursor(ctx, q, ch.ID); err != nil {
				return err
			}
		}
		if err := entity.SetChannelState(ctx, q, ch.ID, entity.ArchiveStateRunning, nil); err != nil {
			return err
		}
		c, err := entity.FindChannel(ctx, q, ch.ID)
		if err != nil {
			return err
		}
		if c == nil {
			return fmt.Errorf("channel %s is not stored", ch.ID)
		}
		cursor = c.Cursor()
		return nil
	})
	return cursor, err
}

func (a *Archiver) paginate(ctx context.Context, r *run, log *zap.SugaredLogger, ch *entity.Channel, cr *ChannelReport) (State, error) {
	for {
		if ctx.Err() != nil {
			return Paused, nil
		}

		cr.State = FetchingPage
		var page []*discordgo.Message
		err := a.fetch(ctx, "fetch messages", func(ctx context.Context) (err error) {
			page, err = a.source.Messages(ctx, ch.ID, cr.Cursor, a.cfg.PageSize)
			return err
		})
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return Paused, nil
		case inaccessible(err):
			cr.Warning = err.Error()
			log.Warnf("Channel %s became inaccessible: %s.", ch.ID, err)
			return Completed, nil
		default:
			return Failed, err
		}
		if len(page) == 0 {
			return Completed, nil
		}

		msgs, next := a.mapPage(log, ch, cr, page)
		if next <= cr.Cursor {
			return Failed, fmt.Errorf("page after %s did not advance the cursor", cr.Cursor)
		}

		var reactors []*entity.User
		if a.cfg.ReactionUsers {
			if reactors, err = a.fetchReactionUsers(ctx, log, ch, msgs); err != nil {
				if ctx.Err() != nil {
					return Paused, nil
				}
				return Failed, err
			}
		}
		users := append(lo.FilterMap(msgs, func(m *entity.Message, _ int) (*entity.User, bool) {
			return m.Author, m.Author != nil
		}), reactors...)

		cr.State = Upserting
		total, err := a.storePage(context.WithoutCancel(ctx), r, ch, msgs, users, next)
		if err != nil {
			return Failed, err
		}
		r.seen.Add(lo.Map(users, func(u *entity.User, _ int) entity.Snowflake { return u.ID })...)
		cr.Cursor, cr.Total = next, total
		cr.Pages++
		cr.Messages += len(msgs)
		log.Debugf("Stored page %d of channel %s: %d messages up to %s.", cr.Pages, ch.ID, len(msgs), next)

		if len(page) < a.cfg.PageSize {
			return Completed, nil
		}
	}
}

// mapPage maps the page in ID order, skipping malformed messages. next is the
// highest valid ID on the page, skipped messages included.
func (a *Archiver) mapPage(log *zap.SugaredLogger, ch *entity.Channel, cr *ChannelReport, page []*discordgo.Message) ([]*entity.Message, entity.Snowflake) {
	var next entity.Snowflake
	msgs := make([]*entity.Message, 0, len(page))
	for _, dm := range page {
		if id, err := snowflake.Parse(dm.ID); err == nil && id > next {
			next = id
		}
		if dm.ChannelID == "" {
			dm.ChannelID = ch.ID.String()
		}
		m, err := entity.NewMessageFromDiscord(dm)
		if err != nil {
			cr.Skipped++
			log.Warnf("Skipping message: %s.", err)
			continue
		}
		if m.ChannelID != ch.ID {
			cr.Skipped++
			log.Warnf("Skipping message %s of channel %s.", m.ID, m.ChannelID)
			continue
		}
		msgs = append(msgs, m)
	}
	slices.SortFunc(msgs, func(x, y *entity.Message) int { return cmp.Compare(x.ID, y.ID) })
	return msgs, next
}

// fetchReactionUsers fills in UserIDs of every reaction in msgs and returns
// the reacting users.
func (a *Archiver) fetchReactionUsers(ctx context.Context, log *zap.SugaredLogger, ch *entity.Channel, msgs []*entity.Message) ([]*entity.User, error) {
	var users []*entity.User
	for _, m := range msgs {
		for _, re := range m.Reactions {
			var after entity.Snowflake
			for {
				var page []*discordgo.User
				err := a.fetch(ctx, "fetch reaction users", func(ctx context.Context) (err error) {
					page, err = a.source.ReactionUsers(ctx, ch.ID, m.ID, re.APIName(), after, reactionUserPageSize)
					return err
				})
				if inaccessible(err) {
					log.Debugf("Skipping reactions %s on message %s: %s.", re.APIName(), m.ID, err)
					break
				}
				if err != nil {
					return nil, err
				}
				for _, du := range page {
					u, err := entity.NewUserFromDiscord(du)
					if err != nil {
						log.Warnf("Skipping reaction user: %s.", err)
						continue
					}
					users = append(users, u)
					re.UserIDs = append(re.UserIDs, u.ID)
				}
				next := maxID(page, func(u *discordgo.User) string { return u.ID })
				if len(page) < reactionUserPageSize || next <= after {
					break
				}
				after = next
			}
		}
	}
	return users, nil
}

// maxID returns the highest parseable ID among items, or 0 if none parses.
func maxID[T any](items []T, id func(T) string) entity.Snowflake {
	var out entity.Snowflake
	for _, it := range items {
		if v, err := snowflake.Parse(id(it)); err == nil && v > out {
			out = v
		}
	}
	return out
}

// storePage writes the page and moves the channel cursor to next in one
// transaction. It returns the channel's stored message count.
func (a *Archiver) storePage(ctx context.Context, r *run, ch *entity.Channel, msgs []*entity.Message, users []*entity.User, next entity.Snowflake) (int, error) {
	var total int
	err := a.storage.Begin(ctx, func(q entity.Querier) error {
		if err := a.upsertUnseenUsers(ctx, q, r, users); err != nil {
			return err
		}
		for _, m := range msgs {
			if err := entity.UpsertMessage(ctx, q, m); err != nil {
				return fmt.Errorf("failed to store message %s: %w", m.ID, err)
			}
			if err := entity.UpsertAttachments(ctx, q, m.Attachments); err != nil {
				return fmt.Errorf("failed to store attachments of message %s: %w", m.ID, err)
			}
			if err := entity.UpsertReactions(ctx, q, m.Reactions); err != nil {
				return fmt.Errorf("failed to store reactions of message %s: %w", m.ID, err)
			}
		}
		var err error
		total, err = entity.SaveChannelProgress(ctx, q, ch.ID, next)
		return err
	})
	return total, err
}

// finishChannel records the channel's final state in the report and the store.
func (a *Archiver) finishChannel(ctx context.Context, log *zap.SugaredLogger, cr *ChannelReport, state State, err error) {
	cr.State, cr.Err = state, err
	text := errorText(err)
	if text == nil && cr.Warning != "" {
		text = &cr.Warning
	}
	if serr := a.storage.Begin(ctx, func(q entity.Querier) error {
		return entity.SetChannelState(ctx, q, cr.ID, state.archiveState(), text)
	}); serr != nil {
		log.Errorf("Failed to save state of channel %s: %s.", cr.ID, serr)
	}

	switch state {
	case Failed:
		log.Errorf("Failed to archive channel %s (%s) at cursor %s: %s.", cr.ID, cr.Name, cr.Cursor, err)
	case Paused:
		log.Infof("Paused channel %s (%s) at cursor %s.", cr.ID, cr.Name, cr.Cursor)
	default:
		log.Infof("Archived channel %s (%s): %d new messages in %d pages, %d total.", cr.ID, cr.Name, cr.Messages, cr.Pages, cr.Total)
	}
}
