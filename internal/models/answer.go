package models

import (
	"encoding/json"
	"strings"
)

// AnswerValue is a single saved answer: plain text for single-choice and
// short-answer questions, an ordered key list for multi-select. The JSON form
// is either a string or an array of strings, matching what clients send.
type AnswerValue struct {
	text  string
	multi []string
	isSet bool
}

func TextAnswer(s string) AnswerValue {
	return AnswerValue{text: s, isSet: true}
}

func MultiAnswer(keys []string) AnswerValue {
	return AnswerValue{multi: keys, isSet: true}
}

func (v AnswerValue) IsMulti() bool {
	return v.multi != nil
}

func (v AnswerValue) Text() string {
	return v.text
}

// Keys returns the selected option keys. A plain text answer yields its value
// as a single key so single-choice grading can treat both forms uniformly.
func (v AnswerValue) Keys() []string {
	if v.multi != nil {
		return v.multi
	}
	if v.text == "" {
		return nil
	}
	return []string{v.text}
}

// Empty reports whether the value carries no content at all. Empty values are
// never written over an existing answer.
func (v AnswerValue) Empty() bool {
	if !v.isSet {
		return true
	}
	if v.multi != nil {
		return len(v.multi) == 0
	}
	return strings.TrimSpace(v.text) == ""
}

// Display renders the answer for archives and prompts.
func (v AnswerValue) Display() string {
	if v.multi != nil {
		return strings.Join(v.multi, ",")
	}
	return v.text
}

func (v AnswerValue) MarshalJSON() ([]byte, error) {
	if v.multi != nil {
		return json.Marshal(v.multi)
	}
	return json.Marshal(v.text)
}

func (v *AnswerValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = TextAnswer(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*v = MultiAnswer(list)
	return nil
}

// AnswerMap maps question id to the last saved answer for it.
type AnswerMap map[string]AnswerValue

// Put saves an answer with last-write-wins semantics per key, except that an
// empty value never erases something already saved.
func (m AnswerMap) Put(qid string, v AnswerValue) {
	qid = strings.TrimSpace(qid)
	if qid == "" {
		return
	}
	if v.Empty() {
		if _, exists := m[qid]; exists {
			return
		}
	}
	m[qid] = v
}
