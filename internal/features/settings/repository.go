package settings

import (
	"context"
	"fmt"
	"time"

	"go-staffhub/internal/database"
	"go-staffhub/pkg/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"
)

// SettingsRepository is the Mongo-backed Gateway. Authorization is enforced
// here, on the server side of the contract, regardless of what the client
// policy allowed through.
type SettingsRepository struct {
	Collection  *mongo.Collection
	Credentials *mongo.Collection
}

func NewSettingsRepository(mongodb *database.MongodbDB) *SettingsRepository {
	return &SettingsRepository{
		Collection:  mongodb.DB.Collection("user_settings"),
		Credentials: mongodb.DB.Collection("user_credentials"),
	}
}

// EnsureIndexes creates the unique user_id index.
func (r *SettingsRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.Collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.M{"user_id": 1},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (r *SettingsRepository) FetchSettings(ctx context.Context, userID string) (SettingsRecord, error) {
	var stored UserSettings
	err := r.Collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&stored)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			// First load for this user: the engine fills declared defaults.
			return SettingsRecord{}, nil
		}
		return nil, err
	}
	record := make(SettingsRecord, len(stored.Sections))
	for id, data := range stored.Sections {
		record[id] = normalizeBSON(data)
	}
	return record, nil
}

func (r *SettingsRepository) UpdateSection(ctx context.Context, userID string, sectionID SectionID, payload SectionData) (SectionData, error) {
	if !IsKnownSection(sectionID) {
		return nil, ErrUnknownSection
	}
	if err := r.authorize(ctx, sectionID, payload); err != nil {
		return nil, err
	}

	if change, ok := asSectionData(payload["passwordChange"]); ok {
		if err := r.changePassword(ctx, userID, change); err != nil {
			return nil, err
		}
		return SectionData{}, nil
	}

	existing, err := r.fetchSection(ctx, userID, sectionID)
	if err != nil {
		return nil, err
	}

	merged := MergeSection(existing, clampRanges(sectionID, payload))
	now := time.Now()
	update := bson.M{
		"$set": bson.M{
			fmt.Sprintf("sections.%s", sectionID): merged,
			"updated_at":                          now,
		},
		"$setOnInsert": bson.M{
			"user_id":    userID,
			"created_at": now,
		},
	}
	opts := options.Update().SetUpsert(true)
	if _, err := r.Collection.UpdateOne(ctx, bson.M{"user_id": userID}, update, opts); err != nil {
		return nil, err
	}
	return merged, nil
}

// authorize rejects admin-gated mutations unless the caller's claims carry the
// admin role. This check runs independently of the client-side policy table.
func (r *SettingsRepository) authorize(ctx context.Context, sectionID SectionID, payload SectionData) error {
	isAdmin := false
	if claims, ok := ctx.Value(utils.UserClaimsKey).(*utils.UserClaims); ok {
		isAdmin = claims.HasRole(RoleAdmin)
	}
	if isAdmin {
		return nil
	}
	if sectionAdminOnly(sectionID) {
		return fmt.Errorf("section %s: %w", sectionID, ErrUnauthorized)
	}
	for path, rule := range accessTable[sectionID] {
		if path == "" || !rule.AdminOnly {
			continue
		}
		if _, present := lookupPath(payload, path); present {
			return fmt.Errorf("field %s.%s: %w", sectionID, path, ErrUnauthorized)
		}
	}
	return nil
}

func (r *SettingsRepository) fetchSection(ctx context.Context, userID string, sectionID SectionID) (SectionData, error) {
	var stored UserSettings
	err := r.Collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&stored)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return SectionData{}, nil
		}
		return nil, err
	}
	return normalizeBSON(stored.Sections[sectionID]), nil
}

type userCredentials struct {
	UserID       string    `bson:"user_id"`
	PasswordHash string    `bson:"password_hash"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

// changePassword verifies the current password against the stored hash and
// replaces it. A user without stored credentials gets one set directly.
func (r *SettingsRepository) changePassword(ctx context.Context, userID string, change SectionData) error {
	current, _ := change["currentPassword"].(string)
	next, _ := change["newPassword"].(string)
	if next == "" {
		return fmt.Errorf("password change: %w", ErrInvalidCredentials)
	}

	var creds userCredentials
	err := r.Credentials.FindOne(ctx, bson.M{"user_id": userID}).Decode(&creds)
	if err != nil && err != mongo.ErrNoDocuments {
		return err
	}
	if err == nil {
		if bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(current)) != nil {
			return ErrInvalidCredentials
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	update := bson.M{"$set": bson.M{
		"password_hash": string(hash),
		"updated_at":    time.Now(),
	}}
	opts := options.Update().SetUpsert(true)
	_, err = r.Credentials.UpdateOne(ctx, bson.M{"user_id": userID}, update, opts)
	return err
}

// clampRanges pins declared numeric fields to their bounds before persisting.
// The client validates too, but the server's value is the one that counts and
// is echoed back for the engine to merge.
func clampRanges(sectionID SectionID, payload SectionData) SectionData {
	out := cloneSection(payload)
	for _, rule := range rangeRules {
		if rule.Section != sectionID {
			continue
		}
		value, ok := lookupPath(out, rule.Path)
		if !ok {
			continue
		}
		n, ok := asNumber(value)
		if !ok {
			continue
		}
		clamped := n
		if clamped < rule.Min {
			clamped = rule.Min
		}
		if clamped > rule.Max {
			clamped = rule.Max
		}
		if clamped != n {
			setPath(out, rule.Path, clamped)
		}
	}
	return out
}

// normalizeBSON rewrites the bson decoder's document types into the plain
// map/slice shapes the merge utility works on.
func normalizeBSON(v any) SectionData {
	data, ok := normalizeValue(v).(map[string]any)
	if !ok {
		return SectionData{}
	}
	return data
}

func normalizeValue(v any) any {
	switch tv := v.(type) {
	case bson.M:
		out := make(map[string]any, len(tv))
		for k, item := range tv {
			out[k] = normalizeValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, item := range tv {
			out[k] = normalizeValue(item)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(tv))
		for _, elem := range tv {
			out[elem.Key] = normalizeValue(elem.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(tv))
		for i, item := range tv {
			out[i] = normalizeValue(item)
		}
		return out
	case []any:
		out := make([]any, len(tv))
		for i, item := range tv {
			out[i] = normalizeValue(item)
		}
		return out
	default:
		return v
	}
}
