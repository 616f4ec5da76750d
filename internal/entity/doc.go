// Package entity declares the business entities that are synced and migrated.
//
// Each entity is a Codec: a value describing its collection, local folder,
// records field, grouping and field schema. The sync adapter and the
// migrator are generic over Codec, so adding an entity means adding one
// register call.
//
// Field kinds drive conversion. Date and DateTime fields become store
// timestamps on push and ISO strings on pull; Money fields are parsed with
// shopspring/decimal and rounded to cents; Any fields are opaque JSON whose
// nested times are converted by the transform package. Plain strings are
// never reinterpreted as dates unless the codec was built WithSniffing.
//
//	c, err := entity.Lookup("attendance")
//	remote := c.ToRemote(schema.Payload{"timeIn": "09:00", "timeOut": "17:00"})
//	// remote == {"timeIn": "09:00", "timeOut": "17:00", "schedule": nil}
package entity
