package studio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

// AgentFileNames are the workspace files every agent is expected to have.
var AgentFileNames = []string{
	"AGENTS.md",
	"SOUL.md",
	"IDENTITY.md",
	"USER.md",
	"TOOLS.md",
	"HEARTBEAT.md",
	"MEMORY.md",
}

// ErrNoTemplateAgent is returned when no agent can serve as a bootstrap
// template.
var ErrNoTemplateAgent = errors.New("gateway: no template agent available to bootstrap agent files")

// BootstrapOptions configures BootstrapAgentFiles.
type BootstrapOptions struct {
	// TemplateAgentID is the agent to copy from. Empty picks the gateway's
	// default agent, then "main", then the first other agent.
	TemplateAgentID string

	// FileNames defaults to AgentFileNames.
	FileNames []string
}

// BootstrapResult reports what BootstrapAgentFiles did.
type BootstrapResult struct {
	TemplateAgentID string   `json:"templateAgentId"`
	Updated         []string `json:"updated"`
	Skipped         []string `json:"skipped"`
}

// BootstrapAgentFiles copies the standard workspace files of a template
// agent into agentID. Files the target already has with content, and files
// that are blank in the template, are skipped.
func (c *Client) BootstrapAgentFiles(ctx context.Context, agentID string, opts BootstrapOptions) (*BootstrapResult, error) {
	target := strings.TrimSpace(agentID)
	if target == "" {
		return nil, errors.New("bootstrap: agent id is required")
	}
	names := opts.FileNames
	if len(names) == 0 {
		names = AgentFileNames
	}

	template := strings.TrimSpace(opts.TemplateAgentID)
	if template == "" {
		var err error
		if template, err = c.templateAgent(ctx, target); err != nil {
			return nil, err
		}
	}
	if template == target {
		return nil, errors.New("bootstrap: template agent cannot be the target agent")
	}

	type pair struct{ target, template *AgentFile }
	reads := make([]pair, len(names))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			f, err := c.AgentFileGet(gctx, target, name)
			if err != nil {
				return fmt.Errorf("read %s of %s: %w", name, target, err)
			}
			reads[i].target = f
			return nil
		})
		g.Go(func() error {
			f, err := c.AgentFileGet(gctx, template, name)
			if err != nil {
				return fmt.Errorf("read %s of %s: %w", name, template, err)
			}
			reads[i].template = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &BootstrapResult{TemplateAgentID: template, Updated: []string{}, Skipped: []string{}}
	var writes []int
	for i, name := range names {
		if !blank(reads[i].target) || blank(reads[i].template) {
			res.Skipped = append(res.Skipped, name)
			continue
		}
		writes = append(writes, i)
	}

	g, gctx = errgroup.WithContext(ctx)
	for _, i := range writes {
		g.Go(func() error {
			if err := c.AgentFileSet(gctx, target, names[i], reads[i].template.Content); err != nil {
				return fmt.Errorf("write %s of %s: %w", names[i], target, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, i := range writes {
		res.Updated = append(res.Updated, names[i])
	}
	c.log.Info("bootstrapped agent files", "agent", target, "template", template, "updated", len(res.Updated))
	return res, nil
}

func (c *Client) templateAgent(ctx context.Context, target string) (string, error) {
	list, err := c.AgentsList(ctx)
	if err != nil {
		return "", err
	}
	if id := strings.TrimSpace(list.DefaultID); id != "" && id != target {
		return id, nil
	}
	for _, a := range list.Agents {
		if a.ID == "main" && target != "main" {
			return "main", nil
		}
	}
	for _, a := range list.Agents {
		if a.ID != "" && a.ID != target {
			return a.ID, nil
		}
	}
	return "", ErrNoTemplateAgent
}

func blank(f *AgentFile) bool {
	return f == nil || f.Missing || strings.TrimSpace(f.Content) == ""
}
