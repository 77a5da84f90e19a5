package service

import (
	"github.com/studysphere/studysphere/blob"
	"github.com/studysphere/studysphere/cache"
	"github.com/studysphere/studysphere/mq"
	"github.com/studysphere/studysphere/store"
	"github.com/studysphere/studysphere/worker"
	"golang.org/x/oauth2"
)

type Service struct {
	Store        store.StudyStore
	Cache        cache.StudyCache
	Blobs        blob.Store
	MQ           mq.MessageQueue
	XPBatcher    *worker.XPBatcher
	OAuthConfigs map[string]*oauth2.Config
	JWTSecret    []byte
}

func NewService(
	store store.StudyStore,
	cache cache.StudyCache,
	blobs blob.Store,
	mq mq.MessageQueue,
	xpBatcher *worker.XPBatcher,
	oauthConfigs map[string]*oauth2.Config,
	jwtSecret []byte,
) (*Service, error) {
	oauthConfigs, err := addOauthEndpointsAndScopes(oauthConfigs)
	if err != nil {
		return nil, err
	}

	return &Service{
		Store:        store,
		Cache:        cache,
		Blobs:        blobs,
		MQ:           mq,
		XPBatcher:    xpBatcher,
		OAuthConfigs: oauthConfigs,
		JWTSecret:    jwtSecret,
	}, nil
}
