package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// ContactDirectory resolves user contact details for the notification
// workers without importing the auth package there.
type ContactDirectory struct {
	repo Repository
}

func NewContactDirectory(repo Repository) *ContactDirectory {
	return &ContactDirectory{repo: repo}
}

// Contact returns the email and display name for userID.
func (d *ContactDirectory) Contact(ctx context.Context, userID uuid.UUID) (email, name string, err error) {
	user, err := d.repo.GetUserByID(ctx, userID)
	if err != nil {
		return "", "", fmt.Errorf("failed to fetch user %s: %w", userID, err)
	}
	return user.Email, user.FullName(), nil
}
