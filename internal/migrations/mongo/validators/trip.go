package validators

import "go.mongodb.org/mongo-driver/bson"

var TripValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"host_user_id",
			"status",
			"conversation_id",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"host_user_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"title": bson.M{
				"bsonType":  "string",
				"maxLength": 150,
			},

			"description": bson.M{
				"bsonType":  "string",
				"maxLength": 2000,
			},

			"destination": bson.M{
				"bsonType":  "string",
				"maxLength": 150,
			},

			"start_date": bson.M{
				"bsonType": "date",
			},

			"end_date": bson.M{
				"bsonType": "date",
			},

			"estimated_budget": bson.M{
				"bsonType": []string{"double", "int", "long", "decimal"},
			},

			"max_participants": bson.M{
				"bsonType": "int",
				"minimum":  1,
				"maximum":  500,
			},

			"join_policy": bson.M{
				"bsonType": "string",
				"enum": []string{
					"OPEN",
					"APPROVAL_REQUIRED",
				},
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"DRAFT",
					"PUBLISHED",
					"ONGOING",
					"COMPLETED",
					"CANCELLED",
				},
			},

			"conversation_id": bson.M{
				"bsonType": "string",
			},

			"member_user_ids": bson.M{
				"bsonType": "array",
				"items": bson.M{
					"bsonType": "string",
				},
			},

			"itinerary": bson.M{
				"bsonType": "array",
				"items": bson.M{
					"bsonType": "object",
					"required": []string{"day_number", "title"},
					"properties": bson.M{
						"day_number": bson.M{
							"bsonType": "int",
							"minimum":  1,
							"maximum":  365,
						},
						"title": bson.M{
							"bsonType":  "string",
							"minLength": 1,
							"maxLength": 150,
						},
						"notes": bson.M{
							"bsonType":  "string",
							"maxLength": 2000,
						},
					},
				},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"updated_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
