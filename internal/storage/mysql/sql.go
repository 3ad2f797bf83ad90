package mysql

// id = LAST_INSERT_ID(id) makes LastInsertId report the existing row on update.
// Promotion flags are only set on insert; afterwards claims own them.
const upsertListingSQL = `
INSERT INTO listings
  (id, slug, name, address, city, state, zip, phone, website, lat, lng,
   hours, schedule, services, description, rating, review_count, is_premium, is_featured)
VALUES
  (NULLIF(?, 0), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  id           = LAST_INSERT_ID(id),
  name         = VALUES(name),
  address      = VALUES(address),
  city         = VALUES(city),
  state        = VALUES(state),
  zip          = VALUES(zip),
  phone        = VALUES(phone),
  website      = VALUES(website),
  lat          = VALUES(lat),
  lng          = VALUES(lng),
  hours        = VALUES(hours),
  schedule     = VALUES(schedule),
  services     = VALUES(services),
  description  = VALUES(description),
  rating       = VALUES(rating),
  review_count = VALUES(review_count),
  updated_at   = CURRENT_TIMESTAMP
`

// NULL arguments keep the current value.
const updatePremiumSQL = `
UPDATE listings SET
  description = COALESCE(?, description),
  website     = COALESCE(?, website),
  phone       = COALESCE(?, phone),
  hours       = COALESCE(?, hours),
  schedule    = COALESCE(?, schedule),
  services    = COALESCE(?, services),
  is_featured = COALESCE(?, is_featured)
WHERE id = ?
`

const setPromotionSQL = `
UPDATE listings SET claimed_by = ?, is_premium = ?, is_featured = ?
WHERE id = ?
`

const (
	listingExistsSQL = `SELECT 1 FROM listings WHERE id = ?`
	claimExistsSQL   = `SELECT 1 FROM claims WHERE id = ?`
)

const insertMissSQL = `
INSERT INTO import_misses (source, row_num, reason)
VALUES (?, ?, ?)
ON DUPLICATE KEY UPDATE reason = VALUES(reason), seen_at = CURRENT_TIMESTAMP
`

// -----------------------------------------------------------------------------
// READ QUERIES
// -----------------------------------------------------------------------------

const listingColumns = `
  id, slug, name, address, city, state, zip, phone, website, lat, lng,
  hours, schedule, services, description, rating, review_count,
  is_premium, is_featured, claimed_by, created_at, updated_at`

// promoted listings first, then best rated
const listingOrder = ` ORDER BY is_featured DESC, is_premium DESC, rating DESC, name ASC, id ASC`

const getListingSQL = `SELECT` + listingColumns + ` FROM listings WHERE id = ?`

const listingsByIDsSQL = `SELECT` + listingColumns + ` FROM listings WHERE id IN (?)`

const listByStateSQL = `SELECT` + listingColumns + ` FROM listings WHERE state = ?` + listingOrder + ` LIMIT ?`

const listByCitySQL = `SELECT` + listingColumns + ` FROM listings WHERE city = ? AND state = ?` + listingOrder + ` LIMIT ?`

const listCoordsSQL = `SELECT id, lat, lng FROM listings WHERE id > ? ORDER BY id LIMIT ?`

// -----------------------------------------------------------------------------
// CLAIMS
// -----------------------------------------------------------------------------

const claimColumns = `
  id, listing_id, user_id, owner_name, email, phone, status, plan, billing_cycle,
  period_start, period_end, created_at, updated_at`

const openClaimForUpdateSQL = `
SELECT id FROM claims
WHERE listing_id = ? AND status IN ('pending', 'active')
LIMIT 1
FOR UPDATE
`

const insertClaimSQL = `
INSERT INTO claims
  (id, listing_id, user_id, owner_name, email, phone, status, plan, billing_cycle,
   period_start, period_end, created_at, updated_at)
VALUES
  (:id, :listing_id, :user_id, :owner_name, :email, :phone, :status, :plan, :billing_cycle,
   :period_start, :period_end, :created_at, :updated_at)
`

const updateClaimSQL = `
UPDATE claims SET
  status        = :status,
  plan          = :plan,
  billing_cycle = :billing_cycle,
  period_start  = :period_start,
  period_end    = :period_end,
  updated_at    = :updated_at
WHERE id = :id
`

const getClaimSQL = `SELECT` + claimColumns + ` FROM claims WHERE id = ?`

const activeClaimSQL = `SELECT` + claimColumns + ` FROM claims
WHERE listing_id = ? AND status = 'active'
ORDER BY updated_at DESC
LIMIT 1`
