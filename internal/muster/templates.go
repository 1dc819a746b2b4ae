package muster

import (
	"context"
	"time"

	"github.com/colonyops/muster/internal/core/config"
	"github.com/colonyops/muster/internal/core/operation"
	"github.com/colonyops/muster/internal/core/schedule"
)

// SaveTemplate stores rec as a template keyed by its name. The roster and
// posting state are stripped.
func (m *OperationManager) SaveTemplate(ctx context.Context, rec *operation.Record) bool {
	tpl := rec.AsTemplate()
	if err := tpl.Validate(); err != nil {
		m.logger.Warn().Err(err).Str("template", rec.Name).Msg("refusing to save invalid template")
		return false
	}
	return m.store.Save(ctx, tpl)
}

// Template loads the template with the given name.
func (m *OperationManager) Template(ctx context.Context, name string) (*operation.Record, bool) {
	rec, err := m.store.Load(ctx, m.store.TemplatePath(name))
	if err != nil || !rec.IsTemplate() {
		return nil, false
	}
	return rec, true
}

// Templates loads every stored template. Unreadable files are skipped.
func (m *OperationManager) Templates(ctx context.Context) []*operation.Record {
	var out []*operation.Record
	for _, path := range m.store.ListTemplates(ctx) {
		rec, err := m.store.Load(ctx, path)
		if err != nil || !rec.IsTemplate() {
			m.logger.Warn().Str("path", path).Msg("skipping unreadable template")
			continue
		}
		out = append(out, rec)
	}
	return out
}

// TemplateNames returns the names of every stored template.
func (m *OperationManager) TemplateNames(ctx context.Context) []string {
	tpls := m.Templates(ctx)
	names := make([]string, len(tpls))
	for i, t := range tpls {
		names[i] = t.Name
	}
	return names
}

// DeleteTemplate removes the named template. A missing template counts as
// deleted.
func (m *OperationManager) DeleteTemplate(ctx context.Context, name string) bool {
	return m.store.DeletePath(ctx, m.store.TemplatePath(name))
}

// CreateFromTemplate posts a new live operation from the named template at
// date. args are option toggles applied over the template's options;
// unknown toggles are logged and ignored.
func (m *OperationManager) CreateFromTemplate(ctx context.Context, name string, date time.Time, args []string) (*operation.Record, error) {
	tpl, ok := m.Template(ctx, name)
	if !ok {
		return nil, operation.ErrTemplateNotFound
	}
	return m.postFromTemplate(ctx, tpl, date, args, "")
}

// PostMatch posts the operation described by a parsed schedule entry. The
// entry's organizer becomes the operation's manager.
func (m *OperationManager) PostMatch(ctx context.Context, match schedule.Match) (*operation.Record, error) {
	if !match.Postable {
		return nil, ErrNotPostable
	}

	tpl, ok := m.Template(ctx, match.TemplateName)
	if !ok {
		return nil, operation.ErrTemplateNotFound
	}
	return m.postFromTemplate(ctx, tpl, match.Date, nil, match.Organizer)
}

func (m *OperationManager) postFromTemplate(ctx context.Context, tpl *operation.Record, date time.Time, args []string, managedBy string) (*operation.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if !date.After(now) {
		return nil, operation.ErrPastDate
	}

	rec := tpl.Instantiate(date, now)
	opts, unknown := operation.ApplyArguments(rec.Options, args)
	if len(unknown) > 0 {
		m.logger.Warn().Strs("arguments", unknown).Str("template", tpl.Name).Msg("ignoring unknown arguments")
	}
	rec.Options = opts
	if managedBy != "" {
		rec.ManagedBy = managedBy
	}

	if _, taken := m.registry.ByFileName(operation.FileNameFor(rec.Name, rec.Date)); taken {
		return nil, operation.ErrDuplicate
	}

	if !m.addLive(ctx, rec) {
		return nil, ErrNotPosted
	}
	return rec, nil
}

// ImportSeeds stores the seed templates from the configuration and returns
// how many were written.
func (m *OperationManager) ImportSeeds(ctx context.Context, seeds []config.Template) int {
	n := 0
	for _, seed := range seeds {
		if m.SaveTemplate(ctx, RecordFromSeed(seed)) {
			n++
		}
	}
	m.logger.Info().Int("templates", n).Int("seeds", len(seeds)).Msg("seed templates imported")
	return n
}

// RecordFromSeed converts a configured seed template into a template record.
func RecordFromSeed(seed config.Template) *operation.Record {
	opts, _ := operation.ApplyArguments(operation.Options{}, seed.Arguments)

	rec := &operation.Record{
		Name:          seed.Name,
		Identity:      operation.Template(),
		Options:       opts,
		Status:        operation.StatusEditing,
		ManagedBy:     seed.ManagedBy,
		TargetChannel: seed.Channel,
		Description:   seed.Description,
		CustomMessage: seed.CustomMessage,
		Arguments:     append([]string(nil), seed.Arguments...),
		Pingables:     append([]string(nil), seed.Pingables...),
	}
	for _, r := range seed.Roles {
		rec.Roles = append(rec.Roles, operation.Role{Name: r.Name, Icon: r.Icon, MaxPositions: r.Max})
	}
	return rec
}
