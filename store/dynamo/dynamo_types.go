package dynamo

import (
	"strings"

	"github.com/studysphere/studysphere/models"
)

// Single-table layout:
//
//	USER#<username> / PROFILE   account record
//	EMAIL#<email> / UNIQUE      email claim, written with the profile
//	NOTE / <created-ms>#<uuid>  note record (SK doubles as the note id)
//	LIKE#<username> / <noteId>  one ledger row per (note, user)
//
// GSI_Email indexes users by Email; GSI_Leaderboard indexes the "USER"
// entity partition by Experience so the leaderboard is an ordered query.
type dynamoUser struct {
	PK           string `dynamodbav:"PK"`
	SK           string `dynamodbav:"SK"`
	Entity       string `dynamodbav:"Entity"`
	Username     string `dynamodbav:"Username"`
	Email        string `dynamodbav:"Email"`
	PasswordHash string `dynamodbav:"PasswordHash"`
	Provider     string `dynamodbav:"Provider"`
	Experience   int    `dynamodbav:"Experience"`
	Created      int64  `dynamodbav:"Created"`
}

func userToDynamo(u models.User) dynamoUser {
	return dynamoUser{
		PK:           "USER#" + u.Username,
		SK:           "PROFILE",
		Entity:       "USER",
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Provider:     u.Provider,
		Experience:   u.Experience,
		Created:      u.Created,
	}
}

func userFromDynamo(du dynamoUser) models.User {
	return models.User{
		Username:     du.Username,
		Email:        du.Email,
		PasswordHash: du.PasswordHash,
		Provider:     du.Provider,
		Experience:   du.Experience,
		Created:      du.Created,
	}
}

// dynamoEmailMarker claims an email address for one username. It is written
// in the same transaction as the profile, so an email can never back two
// accounts.
type dynamoEmailMarker struct {
	PK       string `dynamodbav:"PK"`
	SK       string `dynamodbav:"SK"`
	Username string `dynamodbav:"Username"`
}

func emailMarkerToDynamo(u models.User) dynamoEmailMarker {
	return dynamoEmailMarker{
		PK:       "EMAIL#" + u.Email,
		SK:       "UNIQUE",
		Username: u.Username,
	}
}

type dynamoNote struct {
	PK          string   `dynamodbav:"PK"`
	SK          string   `dynamodbav:"SK"`
	Title       string   `dynamodbav:"Title"`
	TitleLower  string   `dynamodbav:"TitleLower"`
	Subject     string   `dynamodbav:"Subject"`
	Levels      []string `dynamodbav:"Levels"`
	Author      string   `dynamodbav:"Author"`
	Description string   `dynamodbav:"Description"`
	FileURL     string   `dynamodbav:"FileURL"`
	FileName    string   `dynamodbav:"FileName"`
	FileSize    int64    `dynamodbav:"FileSize"`
	Likes       int      `dynamodbav:"Likes"`
	Created     int64    `dynamodbav:"Created"`
}

func noteToDynamo(n models.Note) dynamoNote {
	return dynamoNote{
		PK:          "NOTE",
		SK:          n.Id,
		Title:       n.Title,
		TitleLower:  strings.ToLower(n.Title),
		Subject:     n.Subject,
		Levels:      n.Levels,
		Author:      n.Author,
		Description: n.Description,
		FileURL:     n.FileURL,
		FileName:    n.FileName,
		FileSize:    n.FileSize,
		Likes:       n.Likes,
		Created:     n.Created,
	}
}

func noteFromDynamo(dn dynamoNote) models.Note {
	return models.Note{
		Id:          dn.SK,
		Title:       dn.Title,
		Subject:     dn.Subject,
		Levels:      dn.Levels,
		Author:      dn.Author,
		Description: dn.Description,
		FileURL:     dn.FileURL,
		FileName:    dn.FileName,
		FileSize:    dn.FileSize,
		Likes:       dn.Likes,
		Created:     dn.Created,
	}
}

type dynamoLike struct {
	PK       string `dynamodbav:"PK"`
	SK       string `dynamodbav:"SK"`
	Username string `dynamodbav:"Username"`
	NoteId   string `dynamodbav:"NoteId"`
}

func likeToDynamo(l models.Like) dynamoLike {
	return dynamoLike{
		PK:       "LIKE#" + l.Username,
		SK:       l.NoteId,
		Username: l.Username,
		NoteId:   l.NoteId,
	}
}
