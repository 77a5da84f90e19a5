package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/studysphere/studysphere/mq"
)

// XPAwardMessage is the award-queue payload: points earned by a user from
// someone else's action (currently only likes on their notes).
type XPAwardMessage struct {
	Username string `json:"username"`
	Points   int    `json:"points"`
	Reason   string `json:"reason"`
}

type MQConsumer struct {
	awardQueue mq.MessageQueue
	xpBatcher  *XPBatcher
}

func NewMQConsumer(awardQueue mq.MessageQueue, xpBatcher *XPBatcher) *MQConsumer {
	return &MQConsumer{
		awardQueue: awardQueue,
		xpBatcher:  xpBatcher,
	}
}

const visibilityTimeout = 30

func (mqConsumer MQConsumer) Run(shutdownCtx context.Context) {
	for {
		msg, err := mqConsumer.awardQueue.Receive(shutdownCtx, visibilityTimeout)

		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			log.Printf("mqConsumer receive error: %v", err)
			continue
		}

		if msg == nil {
			continue
		}

		var award XPAwardMessage
		if err := json.Unmarshal([]byte(msg.Body), &award); err == nil && award.Points > 0 {
			mqConsumer.xpBatcher.UpdateCh <- XPUpdate{
				Username: award.Username,
				Delta:    award.Points,
			}
		}

		// Delete whether or not the award landed: failures are terminal
		// for the attempt, never retried
		if err := mqConsumer.awardQueue.Delete(context.Background(), msg); err != nil {
			log.Printf("mqConsumer delete error: %v", err)
			continue
		}
	}
}
