package identity

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"familytree-backend/internal/domain"
	"familytree-backend/internal/logger"
)

const firebaseService = "firebase-auth"

// authClient is the subset of *auth.Client the provider uses.
type authClient interface {
	GetUser(ctx context.Context, uid string) (*auth.UserRecord, error)
	Users(ctx context.Context, nextPageToken string) *auth.UserIterator
	SetCustomUserClaims(ctx context.Context, uid string, customClaims map[string]interface{}) error
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// FirebaseProvider keeps role flags in Firebase custom claims.
type FirebaseProvider struct {
	client authClient
}

// NewFirebaseProvider initializes the Firebase app from a service-account file.
func NewFirebaseProvider(ctx context.Context, credentialsPath string) (*FirebaseProvider, error) {
	if credentialsPath == "" {
		return nil, fmt.Errorf("firebase credentials path not provided")
	}
	if _, err := os.Stat(credentialsPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("firebase credentials file not found at %s", credentialsPath)
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsPath))
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firebase auth client: %w", err)
	}

	logger.Info("Firebase auth client initialized")
	return &FirebaseProvider{client: client}, nil
}

func newFirebaseProviderWithClient(client authClient) *FirebaseProvider {
	return &FirebaseProvider{client: client}
}

func (p *FirebaseProvider) GetUser(ctx context.Context, id string) (*domain.User, error) {
	logger.ExternalServiceCall(firebaseService, "GetUser", "uid", id)
	rec, err := p.client.GetUser(ctx, id)
	logger.ExternalServiceResult(firebaseService, "GetUser", err, "uid", id)
	if err != nil {
		if auth.IsUserNotFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return userFromRecord(rec), nil
}

func (p *FirebaseProvider) ListUsers(ctx context.Context) ([]domain.User, error) {
	logger.ExternalServiceCall(firebaseService, "ListUsers")
	var users []domain.User
	it := p.client.Users(ctx, "")
	for {
		rec, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			logger.ExternalServiceResult(firebaseService, "ListUsers", err)
			return nil, err
		}
		users = append(users, *userFromRecord(rec.UserRecord))
	}
	logger.ExternalServiceResult(firebaseService, "ListUsers", nil, "count", len(users))
	return users, nil
}

// UpdateUserMetadata replaces custom claims with the merge of the current
// claims and patch. Firebase has no partial claim update.
func (p *FirebaseProvider) UpdateUserMetadata(ctx context.Context, id string, patch map[string]any) error {
	rec, err := p.client.GetUser(ctx, id)
	if err != nil {
		if auth.IsUserNotFound(err) {
			return fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
		}
		return err
	}

	claims := make(map[string]interface{}, len(rec.CustomClaims)+len(patch))
	for k, v := range rec.CustomClaims {
		claims[k] = v
	}
	for k, v := range patch {
		claims[k] = v
	}

	logger.ExternalServiceCall(firebaseService, "SetCustomUserClaims", "uid", id)
	err = p.client.SetCustomUserClaims(ctx, id, claims)
	logger.ExternalServiceResult(firebaseService, "SetCustomUserClaims", err, "uid", id)
	return err
}

// VerifyIDToken checks a Firebase ID token and returns the account it belongs to.
func (p *FirebaseProvider) VerifyIDToken(ctx context.Context, idToken string) (*domain.User, error) {
	token, err := p.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("verify firebase id token: %w", err)
	}
	return p.GetUser(ctx, token.UID)
}

func userFromRecord(rec *auth.UserRecord) *domain.User {
	u := &domain.User{Metadata: map[string]any{}}
	if rec == nil {
		return u
	}
	if rec.UserInfo != nil {
		u.ID = rec.UID
		u.Email = rec.Email
		u.DisplayName = rec.DisplayName
	}
	for k, v := range rec.CustomClaims {
		u.Metadata[k] = v
	}
	if rec.UserMetadata != nil && rec.UserMetadata.CreationTimestamp > 0 {
		u.CreatedAt = time.UnixMilli(rec.UserMetadata.CreationTimestamp).UTC()
	}
	return u
}
