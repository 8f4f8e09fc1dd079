// Package api provides the REST client for the reminder service.
//
// Endpoints:
//   - GET    /reminders        list reminders
//   - PATCH  /reminders/{id}   toggle completion
//   - PUT    /reminders/{id}   update fields
//   - DELETE /reminders/{id}   delete
//
// The realtime chat channel lives in package connection.
package api
