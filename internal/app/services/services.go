package services

// Services defined in this package:
// - AuthService: registration, login and token issuing
// - MeetingService: booking, rescheduling and cancelling meetings against
//   the availability index
// - ChatService: chats, messages, read state and unread summaries
// - NotificationBridge: fans booking events out as chat messages and
//   WebSocket notifications
