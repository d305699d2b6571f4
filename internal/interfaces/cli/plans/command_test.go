package plans

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaygate/relaygate/internal/application/plan/dto"
)

func TestPrintPlans(t *testing.T) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	require.NoError(t, printPlans(cmd, []dto.PlanDTO{
		{ID: 1, Name: "Monthly", DurationDays: 30, TrafficLimitGB: 100, DeviceLimit: 3, Price: "4.99", Currency: "USD", IsActive: true},
		{ID: 2, Name: "Unlimited", DurationDays: 90, Price: "12.00", Currency: "EUR"},
	}))

	text := buf.String()
	assert.Regexp(t, `1\s+Monthly\s+30\s+100 GB\s+3\s+4.99 USD\s+true`, text)
	assert.Regexp(t, `2\s+Unlimited\s+90\s+unlimited\s+0\s+12.00 EUR\s+false`, text)
}

func TestCreateRequiresPrice(t *testing.T) {
	cmd := NewCommand()
	create, _, err := cmd.Find([]string{"create"})
	require.NoError(t, err)
	assert.NotNil(t, create.Flags().Lookup("price"))
	assert.Equal(t, "USD", create.Flags().Lookup("currency").DefValue)
}
