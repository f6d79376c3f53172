package progress

// Test-only exports.
var WithKafkaWriter = withKafkaWriter

type KafkaWriter = kafkaWriter
