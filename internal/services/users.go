package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AnshRaj112/tasknest-backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const usersCollection = "users"

// UserStore persists users. Every mutation is a single read-modify-write of
// one document; concurrent writers resolve last-write-wins.
type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID, withPassword bool) (*models.User, error)
	FindByEmail(ctx context.Context, email string, withPassword bool) (*models.User, error)
	// FindByResetOTP returns the user holding code as an unexpired reset code.
	FindByResetOTP(ctx context.Context, code int, now time.Time) (*models.User, error)
	// Save writes only the parts of u named by fields.
	Save(ctx context.Context, u *models.User, fields UserField) error
	// ClearExpiredOTPs nulls every code whose expiry is at or before now.
	ClearExpiredOTPs(ctx context.Context, now time.Time) (int64, error)
}

// UserField selects parts of a user document. Requests work on a copy read
// at the start of the request, so writing untouched fields back would undo
// concurrent changes, such as a reset code issued meanwhile.
type UserField uint

const (
	FieldName UserField = 1 << iota
	FieldAvatar
	FieldVerified
	FieldPassword
	FieldTasks
	FieldVerifyOTP
	FieldResetOTP
)

func (f UserField) Has(field UserField) bool {
	return f&field != 0
}

type MongoUserStore struct {
	col *mongo.Collection
	now func() time.Time
}

func NewMongoUserStore(db *mongo.Database) *MongoUserStore {
	return &MongoUserStore{
		col: db.Collection(usersCollection),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// EnsureIndexes creates the unique email index and the expiry indexes the
// OTP sweeper filters on. Called on startup after Mongo has connected.
func (s *MongoUserStore) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("idx_email_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "otp_expiry", Value: 1}},
			Options: options.Index().SetName("idx_otp_expiry").SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "resetPasswordOtpExpiry", Value: 1}},
			Options: options.Index().SetName("idx_reset_otp_expiry").SetSparse(true),
		},
	}

	for _, m := range indexes {
		if _, err := s.col.Indexes().CreateOne(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (s *MongoUserStore) Create(ctx context.Context, u *models.User) error {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	now := s.now()
	u.CreatedAt = now
	u.UpdatedAt = now
	if u.Tasks == nil {
		u.Tasks = []models.Task{}
	}

	if _, err := s.col.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrUserExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *MongoUserStore) FindByID(ctx context.Context, id primitive.ObjectID, withPassword bool) (*models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id}, withPassword)
}

func (s *MongoUserStore) FindByEmail(ctx context.Context, email string, withPassword bool) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": email}, withPassword)
}

func (s *MongoUserStore) FindByResetOTP(ctx context.Context, code int, now time.Time) (*models.User, error) {
	return s.findOne(ctx, bson.M{
		"resetPasswordOtp":       code,
		"resetPasswordOtpExpiry": bson.M{"$gt": now},
	}, true)
}

func (s *MongoUserStore) findOne(ctx context.Context, filter bson.M, withPassword bool) (*models.User, error) {
	opts := options.FindOne()
	if !withPassword {
		opts.SetProjection(bson.M{"password": 0})
	}

	var u models.User
	err := s.col.FindOne(ctx, filter, opts).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}

// Save sets the fields of u selected by fields, plus updatedAt. The password
// is only written when u carries a hash.
func (s *MongoUserStore) Save(ctx context.Context, u *models.User, fields UserField) error {
	u.UpdatedAt = s.now()
	set := bson.M{"updatedAt": u.UpdatedAt}

	if fields.Has(FieldName) {
		set["name"] = u.Name
	}
	if fields.Has(FieldAvatar) {
		set["avatar"] = u.Avatar
	}
	if fields.Has(FieldVerified) {
		set["verified"] = u.Verified
	}
	if fields.Has(FieldPassword) && u.PasswordHash != "" {
		set["password"] = u.PasswordHash
	}
	if fields.Has(FieldTasks) {
		tasks := u.Tasks
		if tasks == nil {
			tasks = []models.Task{}
		}
		set["tasks"] = tasks
	}
	if fields.Has(FieldVerifyOTP) {
		set["otp"] = u.OTP
		set["otp_expiry"] = u.OTPExpiry
	}
	if fields.Has(FieldResetOTP) {
		set["resetPasswordOtp"] = u.ResetPasswordOTP
		set["resetPasswordOtpExpiry"] = u.ResetPasswordOTPExpiry
	}

	res, err := s.col.UpdateOne(ctx, bson.M{"_id": u.ID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *MongoUserStore) ClearExpiredOTPs(ctx context.Context, now time.Time) (int64, error) {
	var cleared int64

	res, err := s.col.UpdateMany(ctx,
		bson.M{"otp_expiry": bson.M{"$lte": now}},
		bson.M{"$set": bson.M{"otp": nil, "otp_expiry": nil}},
	)
	if err != nil {
		return 0, fmt.Errorf("clear verification codes: %w", err)
	}
	cleared += res.ModifiedCount

	res, err = s.col.UpdateMany(ctx,
		bson.M{"resetPasswordOtpExpiry": bson.M{"$lte": now}},
		bson.M{"$set": bson.M{"resetPasswordOtp": nil, "resetPasswordOtpExpiry": nil}},
	)
	if err != nil {
		return cleared, fmt.Errorf("clear reset codes: %w", err)
	}
	cleared += res.ModifiedCount

	return cleared, nil
}
