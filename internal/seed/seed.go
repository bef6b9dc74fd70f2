// Package seed loads tenant configuration (statuses, roles, workflows and
// item types) from YAML documents and generates sample workflows.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"derbent-workflow/backend/internal/repository"
	"derbent-workflow/backend/internal/services"
	"derbent-workflow/backend/pkg/models"
)

//go:embed sample.yaml
var sampleYAML []byte

// Document is a seed file. Workflows and transitions refer to statuses and
// roles by name.
type Document struct {
	Tenant          TenantDoc       `yaml:"tenant"`
	Statuses        []StatusDoc     `yaml:"statuses"`
	Roles           []string        `yaml:"roles"`
	Assignments     []AssignmentDoc `yaml:"assignments"`
	Workflows       []WorkflowDoc   `yaml:"workflows"`
	SampleWorkflows []string        `yaml:"sample_workflows"`
	ItemTypes       []ItemTypeDoc   `yaml:"item_types"`
}

type TenantDoc struct {
	Name   string `yaml:"name"`
	Domain string `yaml:"domain"`
}

type StatusDoc struct {
	Name         string   `yaml:"name"`
	Color        string   `yaml:"color"`
	SortOrder    int      `yaml:"sort_order"`
	NonDeletable bool     `yaml:"non_deletable"`
	Flags        []string `yaml:"flags"`
}

type AssignmentDoc struct {
	User string `yaml:"user"`
	Role string `yaml:"role"`
}

type WorkflowDoc struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Active      *bool           `yaml:"active"`
	Transitions []TransitionDoc `yaml:"transitions"`
}

// TransitionDoc is one edge. An empty Role is the wildcard.
type TransitionDoc struct {
	From    string `yaml:"from"`
	To      string `yaml:"to"`
	Role    string `yaml:"role"`
	Initial bool   `yaml:"initial"`
}

type ItemTypeDoc struct {
	Name     string `yaml:"name"`
	Kind     string `yaml:"kind"`
	Workflow string `yaml:"workflow"`
}

// Result counts what Apply created. Entries matched by name are not
// counted. Transitions and Assignments are idempotent writes and are counted
// whenever they are applied.
type Result struct {
	Statuses    int
	Roles       int
	Assignments int
	Workflows   int
	Transitions int
	ItemTypes   int
}

// Load decodes a seed document. Unknown fields are rejected.
func Load(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return &doc, nil
		}
		return nil, fmt.Errorf("decode seed document: %w", err)
	}
	return &doc, nil
}

func LoadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// Sample returns the built-in sample document.
func Sample() *Document {
	doc, err := Load(bytes.NewReader(sampleYAML))
	if err != nil {
		panic(fmt.Sprintf("embedded sample seed: %v", err))
	}
	return doc
}

// EnsureTenant returns the tenant owning domain, creating it when missing.
func EnsureTenant(ctx context.Context, tenants repository.TenantStore, name, domain string) (*models.Tenant, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return nil, fmt.Errorf("%w: tenant domain is required", services.ErrInvalidInput)
	}
	tenant, err := tenants.GetTenantByDomain(ctx, domain)
	if err == nil {
		return tenant, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if name == "" {
		name = domain
	}
	tenant = &models.Tenant{Name: name, Domain: domain}
	if err := tenants.CreateTenant(ctx, tenant); err != nil {
		return nil, err
	}
	return tenant, nil
}

// Seeder applies documents through the services so that every write passes
// the same validation as an API call.
type Seeder struct {
	statuses  *services.StatusService
	access    *services.AccessService
	workflows *services.WorkflowService
	logger    services.Logger
}

func NewSeeder(statuses *services.StatusService, access *services.AccessService, workflows *services.WorkflowService, logger services.Logger) *Seeder {
	return &Seeder{statuses: statuses, access: access, workflows: workflows, logger: logger}
}

// Apply creates whatever the document names that the tenant lacks. Running
// it twice is safe: existing statuses, roles, workflows and item types are
// matched by name and reused.
func (s *Seeder) Apply(ctx context.Context, actor models.Actor, doc *Document) (*Result, error) {
	res := &Result{}

	statuses, err := s.ensureStatuses(ctx, actor, doc.Statuses, res)
	if err != nil {
		return res, err
	}
	roles, err := s.ensureRoles(ctx, actor, doc.Roles, res)
	if err != nil {
		return res, err
	}
	for _, a := range doc.Assignments {
		role, ok := roles[a.Role]
		if !ok {
			return res, fmt.Errorf("%w: assignment for %q names unknown role %q", models.ErrInvalidReference, a.User, a.Role)
		}
		if err := s.access.AssignRole(ctx, actor, strings.ToLower(a.User), role.ID); err != nil {
			return res, fmt.Errorf("assign %q to %q: %w", a.Role, a.User, err)
		}
		res.Assignments++
	}

	existing, err := s.workflows.ListWorkflows(ctx, actor)
	if err != nil {
		return res, err
	}
	workflows := make(map[string]*models.Workflow, len(existing))
	for _, wf := range existing {
		workflows[wf.Name] = wf
	}

	for _, wd := range doc.Workflows {
		wf, err := s.ensureWorkflow(ctx, actor, workflows, services.WorkflowInput{
			Name: wd.Name, Description: wd.Description, Active: wd.Active,
		}, res)
		if err != nil {
			return res, err
		}
		for _, td := range wd.Transitions {
			in, err := resolveEdge(wf.ID, td, statuses, roles)
			if err != nil {
				return res, fmt.Errorf("workflow %q: %w", wd.Name, err)
			}
			if err := s.addEdge(ctx, actor, in, res); err != nil {
				return res, fmt.Errorf("workflow %q: %w", wd.Name, err)
			}
		}
	}

	if len(doc.SampleWorkflows) > 0 {
		ordered := sortedStatuses(statuses)
		orderedRoles := sortedRoles(roles, doc.Roles)
		for _, name := range doc.SampleWorkflows {
			if _, ok := workflows[name]; ok {
				s.logger.Debug("sample workflow exists", "tenant", actor.TenantID, "workflow", name)
				continue
			}
			wf, n, err := SampleWorkflow(ctx, s.workflows, actor, name, ordered, orderedRoles)
			if err != nil {
				return res, fmt.Errorf("sample workflow %q: %w", name, err)
			}
			workflows[name] = wf
			res.Workflows++
			res.Transitions += n
		}
	}

	if err := s.ensureItemTypes(ctx, actor, doc.ItemTypes, workflows, res); err != nil {
		return res, err
	}

	s.logger.Info("seed applied", "tenant", actor.TenantID,
		"statuses", res.Statuses, "roles", res.Roles, "workflows", res.Workflows,
		"transitions", res.Transitions, "item_types", res.ItemTypes)
	return res, nil
}

func (s *Seeder) ensureStatuses(ctx context.Context, actor models.Actor, docs []StatusDoc, res *Result) (map[string]*models.Status, error) {
	list, err := s.statuses.ListStatuses(ctx, actor)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]*models.Status, len(list)+len(docs))
	for _, st := range list {
		byName[st.Name] = st
	}
	for _, d := range docs {
		if _, ok := byName[d.Name]; ok {
			continue
		}
		flags, err := parseFlags(d.Flags)
		if err != nil {
			return nil, fmt.Errorf("status %q: %w", d.Name, err)
		}
		st, err := s.statuses.CreateStatus(ctx, actor, services.StatusInput{
			Name: d.Name, Color: d.Color, SortOrder: d.SortOrder, NonDeletable: d.NonDeletable, Flags: flags,
		})
		if err != nil {
			return nil, fmt.Errorf("status %q: %w", d.Name, err)
		}
		byName[st.Name] = st
		res.Statuses++
	}
	return byName, nil
}

func (s *Seeder) ensureRoles(ctx context.Context, actor models.Actor, names []string, res *Result) (map[string]*models.Role, error) {
	list, err := s.access.ListRoles(ctx, actor)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]*models.Role, len(list)+len(names))
	for _, r := range list {
		byName[r.Name] = r
	}
	for _, name := range names {
		if _, ok := byName[name]; ok {
			continue
		}
		role, err := s.access.CreateRole(ctx, actor, name)
		if err != nil {
			return nil, fmt.Errorf("role %q: %w", name, err)
		}
		byName[name] = role
		res.Roles++
	}
	return byName, nil
}

func (s *Seeder) ensureWorkflow(ctx context.Context, actor models.Actor, known map[string]*models.Workflow, in services.WorkflowInput, res *Result) (*models.Workflow, error) {
	if wf, ok := known[in.Name]; ok {
		return wf, nil
	}
	wf, err := s.workflows.CreateWorkflow(ctx, actor, in)
	if err != nil {
		return nil, fmt.Errorf("workflow %q: %w", in.Name, err)
	}
	known[wf.Name] = wf
	res.Workflows++
	return wf, nil
}

func (s *Seeder) addEdge(ctx context.Context, actor models.Actor, in services.TransitionInput, res *Result) error {
	if _, err := s.workflows.AddStatusTransition(ctx, actor, in); err != nil {
		return err
	}
	res.Transitions++
	return nil
}

func (s *Seeder) ensureItemTypes(ctx context.Context, actor models.Actor, docs []ItemTypeDoc, workflows map[string]*models.Workflow, res *Result) error {
	if len(docs) == 0 {
		return nil
	}
	list, err := s.workflows.ListItemTypes(ctx, actor)
	if err != nil {
		return err
	}
	byName := make(map[string]*models.ItemType, len(list))
	for _, it := range list {
		byName[it.Name] = it
	}
	for _, d := range docs {
		var workflowID string
		if d.Workflow != "" {
			wf, ok := workflows[d.Workflow]
			if !ok {
				return fmt.Errorf("%w: item type %q names unknown workflow %q", models.ErrInvalidReference, d.Name, d.Workflow)
			}
			workflowID = wf.ID
		}
		if existing, ok := byName[d.Name]; ok {
			if existing.WorkflowID == "" && workflowID != "" {
				if _, err := s.workflows.BindItemType(ctx, actor, existing.ID, workflowID); err != nil {
					return fmt.Errorf("item type %q: %w", d.Name, err)
				}
			}
			continue
		}
		if _, err := s.workflows.CreateItemType(ctx, actor, services.ItemTypeInput{
			Name: d.Name, Kind: d.Kind, WorkflowID: workflowID,
		}); err != nil {
			return fmt.Errorf("item type %q: %w", d.Name, err)
		}
		res.ItemTypes++
	}
	return nil
}

func resolveEdge(workflowID string, td TransitionDoc, statuses map[string]*models.Status, roles map[string]*models.Role) (services.TransitionInput, error) {
	in := services.TransitionInput{WorkflowID: workflowID, Initial: td.Initial}
	from, ok := statuses[td.From]
	if !ok {
		return in, fmt.Errorf("%w: unknown status %q", models.ErrInvalidReference, td.From)
	}
	to, ok := statuses[td.To]
	if !ok {
		return in, fmt.Errorf("%w: unknown status %q", models.ErrInvalidReference, td.To)
	}
	in.FromStatusID, in.ToStatusID = from.ID, to.ID
	if td.Role != "" {
		role, ok := roles[td.Role]
		if !ok {
			return in, fmt.Errorf("%w: unknown role %q", models.ErrInvalidReference, td.Role)
		}
		in.RoleID = role.ID
	}
	return in, nil
}

func parseFlags(names []string) (models.StatusFlags, error) {
	var f models.StatusFlags
	for _, n := range names {
		switch strings.ToLower(strings.ReplaceAll(n, "-", "_")) {
		case "cancelled":
			f.Cancelled = true
		case "closed":
			f.Closed = true
		case "completed":
			f.Completed = true
		case "in_progress":
			f.InProgress = true
		case "paused":
			f.Paused = true
		case "final":
			f.Final = true
		default:
			return f, fmt.Errorf("%w: unknown status flag %q", services.ErrInvalidInput, n)
		}
	}
	return f, nil
}

func sortedStatuses(byName map[string]*models.Status) []*models.Status {
	out := make([]*models.Status, 0, len(byName))
	for _, st := range byName {
		out = append(out, st)
	}
	SortStatuses(out)
	return out
}

// sortedRoles keeps the document's role order so the first listed role
// drives the forward chain of sample workflows. Roles the document does
// not list follow by name.
func sortedRoles(byName map[string]*models.Role, order []string) []*models.Role {
	out := make([]*models.Role, 0, len(byName))
	seen := make(map[string]bool, len(order))
	for _, name := range order {
		if r, ok := byName[name]; ok && !seen[name] {
			out = append(out, r)
			seen[name] = true
		}
	}
	rest := make([]*models.Role, 0)
	for name, r := range byName {
		if !seen[name] {
			rest = append(rest, r)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].Name < rest[j].Name })
	return append(out, rest...)
}

// SortStatuses orders statuses by sort order, then name.
func SortStatuses(statuses []*models.Status) {
	sort.SliceStable(statuses, func(i, j int) bool {
		if statuses[i].SortOrder != statuses[j].SortOrder {
			return statuses[i].SortOrder < statuses[j].SortOrder
		}
		return statuses[i].Name < statuses[j].Name
	})
}
