package store

import "fmt"

func threadKey(id string) string {
	return fmt.Sprintf("thread:%s", id)
}

func resourceThreadsKey(resourceID string) string {
	return fmt.Sprintf("resource:%s:threads", resourceID)
}

func threadMessagesKey(threadID string) string {
	return fmt.Sprintf("thread:%s:messages", threadID)
}

func messageKey(id string) string {
	return fmt.Sprintf("message:%s", id)
}

func messageKeys(ids []string) []string {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = messageKey(id)
	}
	return keys
}
