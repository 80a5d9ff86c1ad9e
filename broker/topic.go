package broker

import "strings"

// TopicSeparator splits hierarchical topics into segments.
const TopicSeparator = "/"

// MatchTopic reports whether topic matches pattern. Patterns are
// "/"-separated, "+" matches exactly one segment and "#" matches any
// remaining segments including none.
func MatchTopic(pattern, topic string) bool {
	return newTopicPattern(pattern).matches(topic)
}

// topicPattern is a pre-split pattern, so repeated matching skips the split.
type topicPattern struct {
	segments []string
}

func newTopicPattern(pattern string) topicPattern {
	return topicPattern{segments: strings.Split(pattern, TopicSeparator)}
}

func (p topicPattern) matches(topic string) bool {
	return matchSegments(p.segments, strings.Split(topic, TopicSeparator))
}

func matchSegments(pattern, topic []string) bool {
	for i, seg := range pattern {
		if seg == "#" {
			return true
		}
		if i >= len(topic) {
			return false
		}
		if seg != "+" && seg != topic[i] {
			return false
		}
	}
	return len(pattern) == len(topic)
}
