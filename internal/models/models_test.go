package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetaValidate(t *testing.T) {
	require.NoError(t, Meta{"color": "blue", "count": 3.0, "ok": true, "none": nil}.Validate())
	assert.Error(t, Meta{"nested": map[string]any{"a": 1}}.Validate())
	assert.Error(t, Meta{"list": []string{"a"}}.Validate())
}

func TestMetaAccessors(t *testing.T) {
	var m Meta
	require.NoError(t, json.Unmarshal([]byte(`{"area":32.5,"furnished":true,"note":"corner"}`), &m))

	area, ok := m.Float("area")
	assert.True(t, ok)
	assert.Equal(t, 32.5, area)

	furnished, ok := m.Bool("furnished")
	assert.True(t, ok)
	assert.True(t, furnished)

	_, ok = m.String("missing")
	assert.False(t, ok)

	merged := m.Merge(Meta{"note": "updated"})
	note, _ := merged.String("note")
	assert.Equal(t, "updated", note)
	original, _ := m.String("note")
	assert.Equal(t, "corner", original)
}

func TestInvoiceWithDebt(t *testing.T) {
	inv := Invoice{TotalAmount: decimal.RequireFromString("1500.50"), PaidAmount: decimal.RequireFromString("500")}
	assert.True(t, inv.WithDebt().Debt.Equal(decimal.RequireFromString("1000.50")))
}

func TestTicketStatusClosed(t *testing.T) {
	assert.True(t, TicketDone.Closed())
	assert.True(t, TicketCancelled.Closed())
	assert.False(t, TicketWaitingParts.Closed())
	assert.False(t, TicketStatus("BOGUS").Valid())
}

func TestHandoverMutable(t *testing.T) {
	now := time.Now()
	assert.True(t, Handover{Status: HandoverDraft}.Mutable())
	assert.False(t, Handover{Status: HandoverDraft, LockedAt: &now}.Mutable())
	assert.False(t, Handover{Status: HandoverConfirmed}.Mutable())
}

func TestContractMemberCurrent(t *testing.T) {
	now := time.Now()
	assert.True(t, ContractMember{Status: MemberApproved}.Current())
	assert.False(t, ContractMember{Status: MemberPending}.Current())
	assert.False(t, ContractMember{Status: MemberApproved, LeftAt: &now}.Current())
}

func TestOrganizationLocation(t *testing.T) {
	assert.Equal(t, time.UTC, Organization{}.Location())
	assert.Equal(t, time.UTC, Organization{Timezone: "Not/AZone"}.Location())
}
