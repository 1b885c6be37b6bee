package kafka_client

type KafkaConfig struct {
	Broker  string
	GroupID string
	Topic   string
}

func (c KafkaConfig) withDefaults() KafkaConfig {
	if c.Broker == "" {
		c.Broker = "localhost:29092"
	}
	if c.GroupID == "" {
		c.GroupID = "tickersense-mentions"
	}
	if c.Topic == "" {
		c.Topic = KAFKA_TOPIC_RAW_CONTENT
	}
	return c
}
