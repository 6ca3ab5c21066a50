package domain

import "time"

// Project is the subset of a project row the verification flow reads.
type Project struct {
	ID      string
	Name    string
	GuildID string
}

// Verification records a completed wallet-ownership proof.
type Verification struct {
	ID            int64
	ProjectID     string
	GuildID       string
	UserDiscordID string
	WalletAddress string
	VerifiedAt    time.Time
}

// RoleSyncJob asks the worker process to re-evaluate a member's roles.
type RoleSyncJob struct {
	ProjectID     string    `json:"projectId"`
	GuildID       string    `json:"guildId"`
	UserDiscordID string    `json:"userDiscordId"`
	WalletAddress string    `json:"walletAddress"`
	RequestedAt   time.Time `json:"requestedAt"`
}
