package mysql

const upsertListingSQL = `
INSERT INTO listings (name, channel, external_id)
VALUES (?, ?, ?)
ON DUPLICATE KEY UPDATE
  external_id = COALESCE(listings.external_id, VALUES(external_id)),
  id          = LAST_INSERT_ID(id)
`

// Upsert by external_key. approved and id are never part of the UPDATE
// branch: re-ingesting a key refreshes provider fields only.
const upsertReviewSQL = `
INSERT INTO reviews
  (external_key, listing_id, source, source_review_id, type, status, channel,
   rating_overall, rating_items, public_text, submitted_at, author_name, approved)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, FALSE)
ON DUPLICATE KEY UPDATE
  listing_id       = VALUES(listing_id),
  type             = VALUES(type),
  status           = VALUES(status),
  channel          = VALUES(channel),
  rating_overall   = VALUES(rating_overall),
  rating_items     = VALUES(rating_items),
  public_text      = VALUES(public_text),
  submitted_at     = VALUES(submitted_at),
  author_name      = VALUES(author_name),
  updated_at       = CURRENT_TIMESTAMP
`

const insertActivitySQL = `
INSERT INTO activity_log (review_id, action, previous, next)
VALUES `

const insertResponseSQL = `
INSERT INTO manager_responses (review_id, message, created_at)
VALUES (?, ?, ?)
`

// Single-row config record; id is pinned to 1.
const saveRulesSQL = `
INSERT INTO auto_approval_rules (id, rating_threshold, channels)
VALUES (1, ?, ?)
ON DUPLICATE KEY UPDATE
  rating_threshold = VALUES(rating_threshold),
  channels         = VALUES(channels),
  updated_at       = CURRENT_TIMESTAMP
`

const getRulesSQL = `
SELECT rating_threshold, channels FROM auto_approval_rules WHERE id = 1
`

// Reviews are always read joined with their listing name; the engine
// ranks against it.
const findReviewsSQL = `
SELECT
  r.id, r.listing_id, l.name, r.source, r.source_review_id, r.external_key,
  r.type, r.status, r.channel, r.rating_overall, r.rating_items,
  r.public_text, r.submitted_at, r.author_name, r.approved
FROM reviews r
JOIN listings l ON l.id = r.listing_id
`

const listActivitySQL = `
SELECT a.id, a.review_id, l.name, a.action, a.previous, a.next, a.created_at
FROM activity_log a
JOIN reviews r ON r.id = a.review_id
JOIN listings l ON l.id = r.listing_id
`
