package checkin

import "github.com/antoniostano/pulse/internal/notify"

// Closing line appended when the conversation wraps up, right before the
// insights message.
const closingMessage = "Thank you for your time! The conversation is now over. Here are few insights for your improvement..."

func noticeStartFailed() notify.Notice {
	return notify.Notice{
		Kind:        notify.KindError,
		Title:       "Error",
		Description: "Failed to start the conversation. Please try again.",
		ID:          "conversation-start-failed",
	}
}

func noticeResumed() notify.Notice {
	return notify.Notice{
		Kind:        notify.KindSuccess,
		Title:       "Conversation Resumed",
		Description: "You're continuing your previous conversation.",
		ID:          "conversation-resumed",
	}
}

func noticeResumeFetchFailed() notify.Notice {
	return notify.Notice{
		Kind:        notify.KindError,
		Title:       "Error",
		Description: "Failed to check for incomplete conversations",
		ID:          "failed-fetch-conversations",
	}
}

func noticeSendFailed() notify.Notice {
	return notify.Notice{
		Kind:        notify.KindError,
		Title:       "Connection Error",
		Description: "Failed to send your message. Please check your connection and try again.",
		ID:          "send-message-connection-error",
	}
}

func noticeTranscriptionFailed() notify.Notice {
	return notify.Notice{
		Kind:        notify.KindError,
		Title:       "Transcription Error",
		Description: "Failed to transcribe your voice. Please try typing instead.",
		ID:          "transcription-error",
	}
}

func noticeInsightsFailed() notify.Notice {
	return notify.Notice{
		Kind:        notify.KindError,
		Title:       "Error",
		Description: "Failed to generate insights. Please try again later.",
		ID:          "insights-error",
	}
}

func noticeReportFailed() notify.Notice {
	return notify.Notice{
		Kind:        notify.KindError,
		Title:       "Error",
		Description: "Failed to generate your wellbeing report. Please try again later.",
		ID:          "report-error",
	}
}
