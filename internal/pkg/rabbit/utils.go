package rabbit

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/streadway/amqp"
)

//Declare decrares queue
func Declare(ch *amqp.Channel, qName string) (amqp.Queue, error) {
	return ch.QueueDeclare(
		qName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
}

//DeclareQueues returns init function declaring queues on the channel
func DeclareQueues(names ...string) func(*ChannelProvider) error {
	return func(prv *ChannelProvider) error {
		return prv.RunOnChannelWithRetry(func(ch *amqp.Channel) error {
			for _, n := range names {
				if _, err := Declare(ch, prv.QueueName(n)); err != nil {
					return errors.Wrapf(err, "Can't declare queue %s", n)
				}
			}
			return nil
		})
	}
}

func getBytes(data interface{}) ([]byte, error) {
	if b, ok := data.([]byte); ok {
		return b, nil
	}
	res, err := json.Marshal(data)
	if err != nil {
		return nil, errors.Wrap(err, "Can't marshal message")
	}
	return res, nil
}
