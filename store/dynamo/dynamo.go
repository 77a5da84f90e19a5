package dynamo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/gofrs/uuid/v5"

	"github.com/studysphere/studysphere/models"
)

const (
	emailIndex       = "GSI_Email"
	leaderboardIndex = "GSI_Leaderboard"
)

type DynamoStudyStore struct {
	client    *dynamodb.Client
	tableName string
}

func NewDynamoStudyStore(ctx context.Context, devMode bool, dynamodbEndpoint string, tableName string) (*DynamoStudyStore, error) {
	client, err := newDynamoDBClient(context.Background(), devMode, dynamodbEndpoint)
	if err != nil {
		return nil, err
	}

	tables, err := getTables(client, ctx)
	if err != nil {
		return nil, err
	}

	foundTable := false
	for _, table := range tables {
		if table == tableName {
			foundTable = true
			break
		}
	}
	if !foundTable {
		return nil, fmt.Errorf("given table name '%s' not found in dynamodb", tableName)
	}

	return &DynamoStudyStore{client: client, tableName: tableName}, nil
}

// CreateUser inserts the profile and an EMAIL#<email> marker row in one
// transaction, each conditional on its key being free. Username and email
// uniqueness therefore hold even for two concurrent signups; either both
// rows land or neither does.
func (dynamoStore *DynamoStudyStore) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	user.Created = time.Now().Unix()

	err := transactPutIfAbsent(dynamoStore, ctx, userToDynamo(user), emailMarkerToDynamo(user))
	if err != nil {
		return models.User{}, err
	}

	return user, nil
}

func (dynamoStore *DynamoStudyStore) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	du, err := getItem[dynamoUser](dynamoStore, ctx, "USER#"+username, "PROFILE")
	if err != nil {
		return models.User{}, err
	}

	return userFromDynamo(du), nil
}

func (dynamoStore *DynamoStudyStore) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	du, err := queryOneByGSI[dynamoUser](dynamoStore, ctx, emailIndex, "Email", email)
	if err != nil {
		return models.User{}, err
	}

	return userFromDynamo(du), nil
}

// AddExperience adds points to a user's total with an atomic ADD-style
// update; concurrent awards never lose increments. Points are only ever
// positive, so totals are monotonically non-decreasing.
func (dynamoStore *DynamoStudyStore) AddExperience(ctx context.Context, username string, points int) error {
	return incrementCounter(dynamoStore, ctx, "USER#"+username, "PROFILE", "Experience", points)
}

func (dynamoStore *DynamoStudyStore) TopUsersByExperience(ctx context.Context, limit int) ([]models.User, error) {
	dynamoUsers, err := queryGSIDescending[dynamoUser](dynamoStore, ctx, leaderboardIndex, "Entity", "USER", int32(limit))
	if err != nil {
		return nil, err
	}

	users := make([]models.User, 0, len(dynamoUsers))
	for _, du := range dynamoUsers {
		users = append(users, userFromDynamo(du))
	}

	return users, nil
}

func (dynamoStore *DynamoStudyStore) CreateNote(ctx context.Context, note models.Note) (models.Note, error) {
	noteId, err := uuid.NewV4()
	if err != nil {
		return models.Note{}, err
	}

	// The SK is the note id: a zero-padded creation timestamp prefix keeps
	// the partition in chronological order, the uuid keeps it unique.
	note.Created = time.Now().UnixMilli()
	note.Id = fmt.Sprintf("%013d#%s", note.Created, noteId.String())

	if err := putItemIfAbsent(dynamoStore, ctx, noteToDynamo(note)); err != nil {
		return models.Note{}, err
	}

	return note, nil
}

func (dynamoStore *DynamoStudyStore) GetNote(ctx context.Context, noteId string) (models.Note, error) {
	dn, err := getItem[dynamoNote](dynamoStore, ctx, "NOTE", noteId)
	if err != nil {
		return models.Note{}, err
	}

	return noteFromDynamo(dn), nil
}

func (dynamoStore *DynamoStudyStore) ListNotes(ctx context.Context, filter models.NoteFilter) ([]models.Note, error) {
	// Newest first comes straight from key order (ScanIndexForward: false);
	// the most-liked ordering is applied by the caller on top of this.
	dynamoNotes, err := queryAllByPK[dynamoNote](dynamoStore, ctx, "NOTE", false, buildNoteFilter(filter))
	if err != nil {
		return nil, err
	}

	notes := make([]models.Note, 0, len(dynamoNotes))
	for _, dn := range dynamoNotes {
		notes = append(notes, noteFromDynamo(dn))
	}

	return notes, nil
}

func buildNoteFilter(filter models.NoteFilter) *queryFilter {
	var parts []string
	names := make(map[string]string)
	values := make(map[string]types.AttributeValue)

	if filter.Subject != "" {
		parts = append(parts, "#subject = :subject")
		names["#subject"] = "Subject"
		values[":subject"] = &types.AttributeValueMemberS{Value: filter.Subject}
	}
	if filter.Level != "" {
		parts = append(parts, "contains(#levels, :level)")
		names["#levels"] = "Levels"
		values[":level"] = &types.AttributeValueMemberS{Value: filter.Level}
	}
	if filter.Query != "" {
		parts = append(parts, "contains(#titleLower, :query)")
		names["#titleLower"] = "TitleLower"
		values[":query"] = &types.AttributeValueMemberS{Value: strings.ToLower(filter.Query)}
	}

	if len(parts) == 0 {
		return nil
	}

	return &queryFilter{
		expression: strings.Join(parts, " AND "),
		names:      names,
		values:     values,
	}
}

// IncrementNoteLikes bumps the like counter atomically; two concurrent
// likes both land.
func (dynamoStore *DynamoStudyStore) IncrementNoteLikes(ctx context.Context, noteId string) error {
	return incrementCounter(dynamoStore, ctx, "NOTE", noteId, "Likes", 1)
}

// CreateLike writes the ledger row for (note, user). The conditional put
// makes the pair's uniqueness a store invariant: a second like returns
// store.ErrAlreadyExists and nothing is written.
func (dynamoStore *DynamoStudyStore) CreateLike(ctx context.Context, like models.Like) error {
	return putItemIfAbsent(dynamoStore, ctx, likeToDynamo(like))
}

func (dynamoStore *DynamoStudyStore) GetUserLikes(ctx context.Context, username string) ([]string, error) {
	dynamoLikes, err := queryAllByPK[dynamoLike](dynamoStore, ctx, "LIKE#"+username, true, nil)
	if err != nil {
		return nil, err
	}

	noteIds := make([]string, 0, len(dynamoLikes))
	for _, dl := range dynamoLikes {
		noteIds = append(noteIds, dl.SK)
	}

	return noteIds, nil
}
