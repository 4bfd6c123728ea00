package outbox

const workoutSettledSchema = `{
  "type": "object",
  "title": "WorkoutSettled",
  "properties": {
    "workout_id": {"type": "string"},
    "profile_id": {"type": "string"},
    "username": {"type": "string"},
    "template_name": {"type": "string"},
    "duration_minutes": {"type": "integer"},
    "points_earned": {"type": "integer"},
    "total_points": {"type": "integer"},
    "streak_count": {"type": "integer"},
    "is_premium": {"type": "boolean"},
    "completed_on": {"type": "string", "format": "date"},
    "settled_at": {"type": "string", "format": "date-time"}
  },
  "required": ["workout_id", "profile_id", "points_earned", "total_points", "streak_count", "completed_on", "settled_at"],
  "additionalProperties": false
}`

const profileMigratedSchema = `{
  "type": "object",
  "title": "ProfileMigrated",
  "properties": {
    "profile_id": {"type": "string"},
    "username": {"type": "string"},
    "points": {"type": "integer"},
    "streak_count": {"type": "integer"},
    "is_premium": {"type": "boolean"},
    "migrated_at": {"type": "string", "format": "date-time"}
  },
  "required": ["profile_id", "points", "streak_count", "migrated_at"],
  "additionalProperties": false
}`
