package eventbus

// NewWithWriter builds a Producer over a fake writer.
func NewWithWriter(w messageWriter, topic string) *Producer {
	return &Producer{writer: w, topic: topic}
}
