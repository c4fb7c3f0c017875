package bitrix

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// Deal is a CRM deal in REST field naming.
type Deal struct {
	ID           string
	Title        string
	Comments     string
	StageID      string
	AssignedByID string
	ModifyByID   string
}

// Stage is a deal pipeline stage.
type Stage struct {
	StatusID string
	Name     string
}

type dealPayload struct {
	ID           flexString `json:"ID"`
	Title        string     `json:"TITLE"`
	Comments     string     `json:"COMMENTS"`
	StageID      string     `json:"STAGE_ID"`
	AssignedByID flexString `json:"ASSIGNED_BY_ID"`
	ModifyByID   flexString `json:"MODIFY_BY_ID"`
}

func (p dealPayload) toDeal() Deal {
	return Deal{
		ID:           string(p.ID),
		Title:        p.Title,
		Comments:     p.Comments,
		StageID:      p.StageID,
		AssignedByID: string(p.AssignedByID),
		ModifyByID:   string(p.ModifyByID),
	}
}

// GetDeal fetches a deal by id.
func (c *Client) GetDeal(ctx context.Context, domain, token, dealID string) (*Deal, error) {
	raw, err := c.getREST(ctx, domain, "crm.deal.get.json", url.Values{
		"auth": {token},
		"id":   {dealID},
	})
	if err != nil {
		return nil, err
	}
	var payload dealPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("crm.deal.get decode: %w", err)
	}
	deal := payload.toDeal()
	return &deal, nil
}

// ListDeals returns deals newest first. A non-empty assignedID narrows
// the listing to that user's deals.
func (c *Client) ListDeals(ctx context.Context, domain, token, assignedID string) ([]Deal, error) {
	filter := map[string]string{}
	if assignedID != "" {
		filter["ASSIGNED_BY_ID"] = assignedID
	}
	raw, err := c.postJSON(ctx, domain, "crm.deal.list.json", token, map[string]any{
		"order":  map[string]string{"ID": "DESC"},
		"filter": filter,
		"select": []string{"ID", "TITLE", "STAGE_ID", "ASSIGNED_BY_ID"},
	})
	if err != nil {
		return nil, err
	}
	var payload []dealPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("crm.deal.list decode: %w", err)
	}
	deals := make([]Deal, 0, len(payload))
	for _, p := range payload {
		deals = append(deals, p.toDeal())
	}
	return deals, nil
}

// AddDeal creates a deal and returns its id. fields uses CRM REST
// field names (TITLE, COMMENTS, STAGE_ID, ASSIGNED_BY_ID, ...).
func (c *Client) AddDeal(ctx context.Context, domain, token string, fields map[string]string) (string, error) {
	raw, err := c.postJSON(ctx, domain, "crm.deal.add.json", token, map[string]any{
		"fields": fields,
	})
	if err != nil {
		return "", err
	}
	var id flexString
	if err := json.Unmarshal(raw, &id); err != nil {
		return "", fmt.Errorf("crm.deal.add decode: %w", err)
	}
	return string(id), nil
}

// DealStages lists the stages of the default deal pipeline.
func (c *Client) DealStages(ctx context.Context, domain, token string) ([]Stage, error) {
	raw, err := c.getREST(ctx, domain, "crm.dealcategory.stage.list.json", url.Values{
		"auth": {token},
	})
	if err != nil {
		return nil, err
	}
	var payload []struct {
		StatusID string `json:"STATUS_ID"`
		Name     string `json:"NAME"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("crm.dealcategory.stage.list decode: %w", err)
	}
	stages := make([]Stage, 0, len(payload))
	for _, p := range payload {
		stages = append(stages, Stage{StatusID: p.StatusID, Name: p.Name})
	}
	return stages, nil
}
