package domain

import "time"

// Account is one connected trading account shown on the dashboard.
type Account struct {
	ID             int64           `json:"id"`
	Source         BrokerSource    `json:"source"`
	Name           string          `json:"name"`
	OwnerDiscordID string          `json:"owner_discord_id"`
	Settings       AccountSettings `json:"settings"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// AccountSettings are the admin-editable knobs for an account. They live in
// their own table; updates span accounts and account_settings in one
// transaction.
type AccountSettings struct {
	Enabled         bool    `json:"enabled"`
	MaxPositionSize float64 `json:"max_position_size"`
	Notes           string  `json:"notes"`
}
